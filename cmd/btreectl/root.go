// Command btreectl is a small operator tool for a bptree index file: seed
// it with sequential int32 keys, pretty-print or render its structure, and
// optionally expose its buffer pool/tree metrics over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger *zap.SugaredLogger

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "btreectl",
		Short: "Inspect and seed bptree index files",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var zl *zap.Logger
			var err error
			if verbose {
				zl, err = zap.NewDevelopment()
			} else {
				cfg := zap.NewProductionConfig()
				cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
				zl, err = cfg.Build()
			}
			if err != nil {
				return err
			}
			logger = zl.Sugar()
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	cmd.AddCommand(newSeedCmd(), newInspectCmd(), newServeMetricsCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "btreectl:", err)
		os.Exit(1)
	}
}
