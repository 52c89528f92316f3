package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

const (
	StrategyStandard = "standard"
	StrategyComplex  = "complex"
	StrategyNone     = "none"
)

const (
	LockLocal = "local"
	LockEtcd  = "etcd"
)

type Router struct {
	LogLevel             string `json:"log_level" toml:"log_level" yaml:"log_level"`
	PrettyLogging        bool   `json:"pretty_log" toml:"pretty_log" yaml:"pretty_log"`
	LogFile              string `json:"log_file" toml:"log_file" yaml:"log_file"`
	LogMinDurationMillis int    `json:"log_min_duration_ms" toml:"log_min_duration_ms" yaml:"log_min_duration_ms"`

	// DataSources is ordered; unicast and owner assignment prefer earlier entries.
	DataSources       []string `json:"data_sources" toml:"data_sources" yaml:"data_sources"`
	DefaultDataSource string   `json:"default_data_source" toml:"default_data_source" yaml:"default_data_source"`

	Sharding ShardingCfg `json:"sharding" toml:"sharding" yaml:"sharding"`

	// SingleTables maps a logical table to its data node, e.g. "ds_1.t_config".
	SingleTables map[string]string `json:"single_tables" toml:"single_tables" yaml:"single_tables"`

	Shadow *ShadowCfg `json:"shadow,omitempty" toml:"shadow" yaml:"shadow"`
	Lock   LockCfg    `json:"lock" toml:"lock" yaml:"lock"`

	MaxRowCount int64 `json:"max_row_count" toml:"max_row_count" yaml:"max_row_count"`
}

type ShardingCfg struct {
	Tables          map[string]*TableCfg `json:"tables" toml:"tables" yaml:"tables"`
	BindingTables   [][]string           `json:"binding_tables" toml:"binding_tables" yaml:"binding_tables"`
	BroadcastTables []string             `json:"broadcast_tables" toml:"broadcast_tables" yaml:"broadcast_tables"`

	DefaultDatabaseStrategy *StrategyCfg `json:"default_database_strategy,omitempty" toml:"default_database_strategy" yaml:"default_database_strategy"`
	DefaultTableStrategy    *StrategyCfg `json:"default_table_strategy,omitempty" toml:"default_table_strategy" yaml:"default_table_strategy"`

	Algorithms map[string]*AlgorithmCfg `json:"algorithms" toml:"algorithms" yaml:"algorithms"`
}

type TableCfg struct {
	// ActualDataNodes is an inline expression such as "ds_${0..1}.t_order_${0..1}".
	// Empty means the logical table on every data source.
	ActualDataNodes  string       `json:"actual_data_nodes" toml:"actual_data_nodes" yaml:"actual_data_nodes"`
	DatabaseStrategy *StrategyCfg `json:"database_strategy,omitempty" toml:"database_strategy" yaml:"database_strategy"`
	TableStrategy    *StrategyCfg `json:"table_strategy,omitempty" toml:"table_strategy" yaml:"table_strategy"`
}

type StrategyCfg struct {
	Type      string   `json:"type" toml:"type" yaml:"type"`
	Column    string   `json:"column,omitempty" toml:"column" yaml:"column"`
	Columns   []string `json:"columns,omitempty" toml:"columns" yaml:"columns"`
	Algorithm string   `json:"algorithm,omitempty" toml:"algorithm" yaml:"algorithm"`
}

type AlgorithmCfg struct {
	Type  string            `json:"type" toml:"type" yaml:"type"`
	Props map[string]string `json:"props" toml:"props" yaml:"props"`
}

type ShadowCfg struct {
	// DataSources maps a production data source to its shadow twin.
	DataSources map[string]string         `json:"data_sources" toml:"data_sources" yaml:"data_sources"`
	Tables      map[string]ShadowTableCfg `json:"tables" toml:"tables" yaml:"tables"`
	EnableHint  bool                      `json:"enable_hint" toml:"enable_hint" yaml:"enable_hint"`
}

type ShadowTableCfg struct {
	Column string   `json:"column" toml:"column" yaml:"column"`
	Values []string `json:"values" toml:"values" yaml:"values"`
}

type LockCfg struct {
	Type      string        `json:"type" toml:"type" yaml:"type"`
	Endpoints []string      `json:"endpoints,omitempty" toml:"endpoints" yaml:"endpoints"`
	Prefix    string        `json:"prefix,omitempty" toml:"prefix" yaml:"prefix"`
	TTL       int           `json:"ttl,omitempty" toml:"ttl" yaml:"ttl"`
	Timeout   time.Duration `json:"timeout,omitempty" toml:"timeout" yaml:"timeout"`
}

var cfgRouter Router

// LoadRouterCfg loads the router configuration from the specified file path.
//
// Parameters:
//   - cfgPath (string): The path of the configuration file.
//
// Returns:
//   - string: JSON-formatted config
//   - error: An error if any occurred during the loading process.
func LoadRouterCfg(cfgPath string) (string, error) {
	var rcfg Router
	file, err := os.Open(cfgPath)
	if err != nil {
		cfgRouter = rcfg
		return "", err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			log.Fatalf("failed to close config file: %v", err)
		}
	}(file)

	if err := initConfig(file, &rcfg); err != nil {
		cfgRouter = rcfg
		return "", err
	}
	rcfg.applyDefaults()

	configBytes, err := json.MarshalIndent(&rcfg, "", "  ")
	if err != nil {
		cfgRouter = rcfg
		return "", err
	}

	cfgRouter = rcfg
	return string(configBytes), nil
}

// RouterConfig returns a pointer to the loaded router configuration.
func RouterConfig() *Router {
	return &cfgRouter
}

func (r *Router) applyDefaults() {
	if r.LogLevel == "" {
		r.LogLevel = "info"
	}
	if r.Lock.Type == "" {
		r.Lock.Type = LockLocal
	}
	if r.Lock.Prefix == "" {
		r.Lock.Prefix = "/shroute"
	}
	if r.Lock.TTL == 0 {
		r.Lock.TTL = 10
	}
	if r.Lock.Timeout == 0 {
		r.Lock.Timeout = 5 * time.Second
	}
	if r.LogMinDurationMillis == 0 {
		r.LogMinDurationMillis = -1
	}
}

// LogMinDuration is the routing time above which a decision is logged. Zero or less disables it.
func (r *Router) LogMinDuration() time.Duration {
	if r.LogMinDurationMillis <= 0 {
		return -1
	}
	return time.Duration(r.LogMinDurationMillis) * time.Millisecond
}
