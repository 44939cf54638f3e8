package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bptreedb/bptree"
	"bptreedb/storage/bufferpool"
	"bptreedb/storage/diskmanager"
)

func newInspectCmd() *cobra.Command {
	var asDot bool
	var poolSize int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print an existing index file's tree structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			dm, err := diskmanager.Open(path, logger)
			if err != nil {
				return fmt.Errorf("open disk manager: %w", err)
			}
			defer dm.Close()

			pool := bufferpool.New(poolSize, dm, logger, nil)
			tr, err := bptree.Open[int32](pool, false, bptree.CompareInt32, bptree.Int32Codec(), 64, 64, bptree.Options{Log: logger})
			if err != nil {
				return fmt.Errorf("open tree: %w", err)
			}

			if asDot {
				return tr.WriteDot(os.Stdout)
			}
			return tr.Fprint(os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&asDot, "dot", false, "render as a Graphviz digraph instead of a text dump")
	cmd.Flags().IntVar(&poolSize, "pool-size", 128, "buffer pool frame capacity")
	return cmd
}
