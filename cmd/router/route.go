package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/pg-sharding/shroute/pkg/lock"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/binder"
	"github.com/pg-sharding/shroute/router/qrouter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type routeResult struct {
	SQL   string        `json:"sql"`
	Plan  *qrouter.Plan `json:"plan,omitempty"`
	Error string        `json:"error,omitempty"`
	Code  string        `json:"code,omitempty"`
}

var routeCmd = &cobra.Command{
	Use:   "route [statement...]",
	Short: "print the routing plan of each statement as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		stmts := args
		if queryFile != "" {
			fromFile, err := readStatements(queryFile)
			if err != nil {
				return err
			}
			stmts = append(stmts, fromFile...)
		}
		if len(stmts) == 0 {
			return errors.New("no statements to route")
		}

		topo, err := topology.New(cfg)
		if err != nil {
			return err
		}
		locker, err := lock.NewFromConfig(cfg.Lock)
		if err != nil {
			return err
		}
		defer func() {
			if err := locker.Close(); err != nil {
				shlog.Zero.Error().Err(err).Msg("failed to close locker")
			}
		}()

		qr := qrouter.NewQrouter(topology.NewHolder(topo), locker, cfg)
		if err := qr.Sync(cmd.Context()); err != nil {
			return err
		}
		params := parseParams(queryParams)

		results := make([]routeResult, len(stmts))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(jobs, 1))
		for i, sql := range stmts {
			g.Go(func() error {
				results[i] = routeOne(ctx, qr, sql, params)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	},
}

func routeOne(ctx context.Context, qr qrouter.QueryRouter, sql string, params []any) routeResult {
	res := routeResult{SQL: sql}

	stmt, err := binder.Bind(sql)
	if err == nil {
		res.Plan, err = qr.Route(ctx, stmt, params)
	}
	if err != nil {
		res.Error = err.Error()
		var se *sherror.ShError
		if errors.As(err, &se) {
			res.Code = se.ErrorCode
		}
	}
	return res
}

// readStatements returns the non-empty lines of path, skipping "--" comments.
func readStatements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ret []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		ret = append(ret, strings.TrimSuffix(line, ";"))
	}
	return ret, sc.Err()
}

// parseParams types flag values the way a driver would bind them: integers, then floats,
// then NULL, and strings otherwise.
func parseParams(raw []string) []any {
	ret := make([]any, 0, len(raw))
	for _, r := range raw {
		if n, err := strconv.ParseInt(r, 10, 64); err == nil {
			ret = append(ret, n)
			continue
		}
		if f, err := strconv.ParseFloat(r, 64); err == nil {
			ret = append(ret, f)
			continue
		}
		if strings.EqualFold(r, "null") {
			ret = append(ret, nil)
			continue
		}
		ret = append(ret, r)
	}
	return ret
}
