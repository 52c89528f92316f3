package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "validate the config and print the resulting topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		topo, err := topology.New(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data sources: %s\n", strings.Join(topo.DataSources, ", "))
		if topo.DefaultDataSource != "" {
			fmt.Fprintf(out, "default data source: %s\n", topo.DefaultDataSource)
		}

		for _, t := range topo.ShardedTables() {
			nodes := topo.DataNodes(t)
			names := make([]string, 0, len(nodes))
			for _, dn := range nodes {
				names = append(names, dn.String())
			}
			fmt.Fprintf(out, "sharded %s: %s\n", t, strings.Join(names, ", "))
			if g := topo.BindingGroup(t); len(g) > 0 && g[0] == t {
				fmt.Fprintf(out, "binding group: %s\n", strings.Join(g, ", "))
			}
		}
		for _, t := range topo.BroadcastTables() {
			fmt.Fprintf(out, "broadcast %s\n", t)
		}
		for _, t := range topo.SingleTables().Names() {
			dn, _ := topo.SingleTables().Lookup(t)
			fmt.Fprintf(out, "single %s: %s\n", t, dn)
		}
		if sr := topo.Shadow(); sr != nil {
			for _, prod := range slices.Sorted(maps.Keys(sr.DataSources)) {
				fmt.Fprintf(out, "shadow %s -> %s\n", prod, sr.DataSources[prod])
			}
		}
		fmt.Fprintf(out, "algorithms: %s\n", strings.Join(algorithm.Types(), ", "))
		return nil
	},
}
