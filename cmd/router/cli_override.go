package main

import (
	"fmt"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/spf13/cobra"
)

type overrideRule struct {
	name     string
	changed  func() bool
	validate func() error
	apply    func()
}

func buildOverrideRules(cmd *cobra.Command, cfg *config.Router) []overrideRule {
	return []overrideRule{
		{
			name:    "log-level",
			changed: func() bool { return cmd.Flags().Changed("log-level") },
			apply:   func() { cfg.LogLevel = logLevel },
		},
		{
			name:    "pretty-log",
			changed: func() bool { return cmd.Flags().Changed("pretty-log") },
			apply:   func() { cfg.PrettyLogging = prettyLogging },
		},
		{
			name:    "default-data-source",
			changed: func() bool { return cmd.Flags().Changed("default-data-source") },
			apply:   func() { cfg.DefaultDataSource = defaultDataSource },
		},
		{
			name:    "max-row-count",
			changed: func() bool { return cmd.Flags().Changed("max-row-count") },
			validate: func() error {
				if maxRowCount < 0 {
					return fmt.Errorf("must not be negative, got %d", maxRowCount)
				}
				return nil
			},
			apply: func() { cfg.MaxRowCount = maxRowCount },
		},
		{
			name:    "lock",
			changed: func() bool { return cmd.Flags().Changed("lock") },
			validate: func() error {
				if lockType != config.LockLocal && lockType != config.LockEtcd {
					return fmt.Errorf("unknown lock type %q", lockType)
				}
				return nil
			},
			apply: func() { cfg.Lock.Type = lockType },
		},
		{
			name:    "lock-endpoints",
			changed: func() bool { return cmd.Flags().Changed("lock-endpoints") },
			apply:   func() { cfg.Lock.Endpoints = lockEndpoints },
		},
	}
}

func applyOverrides(cmd *cobra.Command, cfg *config.Router) error {
	rules := buildOverrideRules(cmd, cfg)
	for _, r := range rules {
		if r.changed() && r.validate != nil {
			if err := r.validate(); err != nil {
				return fmt.Errorf("%s: %w", r.name, err)
			}
		}
	}
	for _, r := range rules {
		if r.changed() {
			r.apply()
		}
	}
	return nil
}
