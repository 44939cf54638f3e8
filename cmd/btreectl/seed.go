package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bptreedb/bptree"
	"bptreedb/storage/bufferpool"
	"bptreedb/storage/diskmanager"
)

// newSeedCmd builds btreectl's "seed" subcommand. The tool only ever deals
// in int32 keys — a generic-over-K tree needs a concrete K picked at
// compile time, and int32 is enough to exercise and inspect any tree shape.
func newSeedCmd() *cobra.Command {
	var count int
	var leafMax, internalMax int
	var poolSize int

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Create a fresh index file and insert sequential int32 keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			dm, err := diskmanager.Open(path, logger)
			if err != nil {
				return fmt.Errorf("open disk manager: %w", err)
			}
			defer dm.Close()

			pool := bufferpool.New(poolSize, dm, logger, nil)
			tr, err := bptree.Open[int32](pool, true, bptree.CompareInt32, bptree.Int32Codec(), leafMax, internalMax, bptree.Options{Log: logger})
			if err != nil {
				return fmt.Errorf("create tree: %w", err)
			}

			for i := int32(1); i <= int32(count); i++ {
				if _, err := tr.Insert(i, bptree.RID(i)); err != nil {
					return fmt.Errorf("insert %d: %w", i, err)
				}
			}
			if err := pool.FlushAllPages(); err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			if err := dm.Sync(); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			fmt.Printf("seeded %s with %d keys (leafMax=%d internalMax=%d)\n", path, count, leafMax, internalMax)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "number of sequential keys to insert")
	cmd.Flags().IntVar(&leafMax, "leaf-max", 64, "leaf node max size")
	cmd.Flags().IntVar(&internalMax, "internal-max", 64, "internal node max size")
	cmd.Flags().IntVar(&poolSize, "pool-size", 128, "buffer pool frame capacity")
	return cmd
}
