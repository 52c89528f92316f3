package main

import (
	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	rcfgPath          string
	logLevel          string
	prettyLogging     bool
	defaultDataSource string
	maxRowCount       int64
	lockType          string
	lockEndpoints     []string

	queryFile   string
	queryParams []string
	jobs        int
)

var rootCmd = &cobra.Command{
	Use:   "shroute-router --config `path-to-config`",
	Short: "shroute-router",
	Long:  "shroute-router plans SQL statements against a sharding topology",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		shlog.Zero.Fatal().Err(err).Msg("")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rcfgPath, "config", "c", "/etc/shroute/router.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level, overrides config")
	rootCmd.PersistentFlags().BoolVarP(&prettyLogging, "pretty-log", "P", false, "pretty logging, overrides config")
	rootCmd.PersistentFlags().StringVar(&defaultDataSource, "default-data-source", "", "data source for tables without rules, overrides config")
	rootCmd.PersistentFlags().Int64Var(&maxRowCount, "max-row-count", 0, "cap of the revised per-target row count, overrides config")
	rootCmd.PersistentFlags().StringVar(&lockType, "lock", "", "lock implementation for single table creation: local or etcd")
	rootCmd.PersistentFlags().StringSliceVar(&lockEndpoints, "lock-endpoints", nil, "etcd endpoints of the lock service")

	routeCmd.Flags().StringVarP(&queryFile, "file", "f", "", "read statements from file, one per line")
	routeCmd.Flags().StringSliceVarP(&queryParams, "param", "p", nil, "values bound to ? markers, in order")
	routeCmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "statements routed concurrently")

	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(checkCmd)
}

// loadConfig reads the config file, applies flag overrides and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Router, error) {
	if _, err := config.LoadRouterCfg(rcfgPath); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	cfg := config.RouterConfig()
	if err := applyOverrides(cmd, cfg); err != nil {
		return nil, err
	}

	shlog.ReloadLogger(cfg.LogFile, cfg.PrettyLogging)
	if err := shlog.UpdateZeroLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	shlog.Zero.Debug().Str("path", rcfgPath).Msg("loaded router config")
	return cfg, nil
}

func main() {
	Execute()
}
