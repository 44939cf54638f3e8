package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"bptreedb/bptree"
	"bptreedb/storage/bufferpool"
	"bptreedb/storage/diskmanager"
)

// newServeMetricsCmd opens an index file, registers its tree's split/merge/
// redistribute/root-collapse counters and the buffer pool's hit/miss/
// eviction counters against prometheus.DefaultRegisterer, then blocks
// serving /metrics — the counters only move if something else is also
// hitting the same file's pages through this process.
func newServeMetricsCmd() *cobra.Command {
	var addr string
	var fresh bool
	var poolSize int

	cmd := &cobra.Command{
		Use:   "serve-metrics <file>",
		Short: "Open an index file and serve its live Prometheus counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			dm, err := diskmanager.Open(path, logger)
			if err != nil {
				return fmt.Errorf("open disk manager: %w", err)
			}
			defer dm.Close()

			pool := bufferpool.New(poolSize, dm, logger, prometheus.DefaultRegisterer)
			_, err = bptree.Open[int32](pool, fresh, bptree.CompareInt32, bptree.Int32Codec(), 64, 64, bptree.Options{
				Log:               logger,
				MetricsRegisterer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return fmt.Errorf("open tree: %w", err)
			}

			http.Handle("/metrics", promhttp.Handler())
			logger.Infow("serving metrics", "addr", addr, "file", path)
			fmt.Printf("serving /metrics on %s for %s\n", addr, path)
			return http.ListenAndServe(addr, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "create a new index file instead of opening an existing one")
	cmd.Flags().IntVar(&poolSize, "pool-size", 128, "buffer pool frame capacity")
	return cmd
}
