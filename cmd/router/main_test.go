package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRouterYAML = `
log_level: disabled
data_sources: [ds_0, ds_1]
sharding:
  tables:
    t_order:
      actual_data_nodes: "ds_${0..1}.t_order_${0..1}"
      database_strategy: {type: standard, column: order_id, algorithm: mod2}
      table_strategy: {type: standard, column: order_id, algorithm: mod2}
  broadcast_tables: [t_dict]
  algorithms:
    mod2:
      type: MOD
      props:
        sharding-count: "2"
single_tables:
  t_config: ds_1.t_config
`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	return p
}

func TestParseParams(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]any{int64(5), 1.5, nil, "abc", "-"}, parseParams([]string{"5", "1.5", "NULL", "abc", "-"}))
	assert.Empty(parseParams(nil))
}

func TestReadStatements(t *testing.T) {
	assert := assert.New(t)
	p := writeFile(t, "queries.sql", "-- orders\nSELECT 1;\n\n  SELECT * FROM t_order  \n")

	stmts, err := readStatements(p)
	require.NoError(t, err)
	assert.Equal([]string{"SELECT 1", "SELECT * FROM t_order"}, stmts)

	_, err = readStatements(filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(err)
}

// overrideCmd binds the override flags on a fresh command so that rootCmd flags stay unchanged.
func overrideCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().BoolVar(&prettyLogging, "pretty-log", false, "")
	cmd.Flags().StringVar(&defaultDataSource, "default-data-source", "", "")
	cmd.Flags().Int64Var(&maxRowCount, "max-row-count", 0, "")
	cmd.Flags().StringVar(&lockType, "lock", "", "")
	cmd.Flags().StringSliceVar(&lockEndpoints, "lock-endpoints", nil, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyOverrides(t *testing.T) {
	assert := assert.New(t)

	cmd := overrideCmd(t, "--log-level", "debug", "--max-row-count", "100", "--default-data-source", "ds_1")
	cfg := &config.Router{LogLevel: "info", DefaultDataSource: "ds_0", PrettyLogging: true}
	require.NoError(t, applyOverrides(cmd, cfg))
	assert.Equal("debug", cfg.LogLevel)
	assert.Equal(int64(100), cfg.MaxRowCount)
	assert.Equal("ds_1", cfg.DefaultDataSource)
	// unchanged flags keep config values
	assert.True(cfg.PrettyLogging)

	cmd = overrideCmd(t, "--lock", "etcd", "--lock-endpoints", "localhost:2379,localhost:2380")
	cfg = &config.Router{}
	require.NoError(t, applyOverrides(cmd, cfg))
	assert.Equal(config.LockEtcd, cfg.Lock.Type)
	assert.Equal([]string{"localhost:2379", "localhost:2380"}, cfg.Lock.Endpoints)

	cmd = overrideCmd(t, "--lock", "zookeeper", "--log-level", "error")
	cfg = &config.Router{LogLevel: "info"}
	assert.ErrorContains(applyOverrides(cmd, cfg), "lock")
	// nothing is applied when a rule is rejected
	assert.Equal("info", cfg.LogLevel)
}

func TestRouteCommand(t *testing.T) {
	assert := assert.New(t)
	cfgPath := writeFile(t, "router.yaml", testRouterYAML)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"route", "--config", cfgPath, "--jobs", "2", "--param", "3",
		"SELECT * FROM t_order WHERE order_id = ?",
		"SELECT * FROM t_dict, t_config",
		"SELECT * FROM t_missing",
	})
	require.NoError(t, rootCmd.Execute())

	var results []routeResult
	dec := json.NewDecoder(&out)
	for {
		var r routeResult
		err := dec.Decode(&r)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		results = append(results, r)
	}
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Plan)
	assert.Equal("standard", results[0].Plan.Engine)
	assert.Equal("ds_1[t_order->t_order_1]", results[0].Plan.Context.String())

	require.NotNil(t, results[1].Plan)
	assert.Equal("ds_1[t_config,t_dict]", results[1].Plan.Context.String())

	assert.Nil(results[2].Plan)
	assert.Equal(sherror.SHR_TABLE_NOT_FOUND, results[2].Code)
	assert.NotEmpty(results[2].Error)
}

func TestCheckCommand(t *testing.T) {
	assert := assert.New(t)
	cfgPath := writeFile(t, "router.yaml", testRouterYAML)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"check", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(out.String(), "data sources: ds_0, ds_1")
	assert.Contains(out.String(), "sharded t_order: ds_0.t_order_0, ds_0.t_order_1, ds_1.t_order_0, ds_1.t_order_1")
	assert.Contains(out.String(), "broadcast t_dict")
	assert.Contains(out.String(), "single t_config: ds_1.t_config")
}
