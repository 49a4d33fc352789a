package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var scanMax int64

var scanCmd = &cobra.Command{
	Use:   "scan [namespace] [set]",
	Short: "Stream every record of a namespace/set",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Int64Var(&scanMax, "max", 0, "stop after this many records (0 = unlimited)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ns := args[0]
	set := ""
	if len(args) > 1 {
		set = args[1]
	}

	ctx := context.Background()
	client, err := aspike.NewClient(ctx, aspike.DefaultClientConfig(seeds...))
	if err != nil {
		return err
	}
	defer client.Close()

	pol := aspike.DefaultScanPolicy()
	pol.MaxRecords = scanMax
	count := 0
	err = client.Scan(ctx, pol, ns, set, func(rec *aspike.Record) bool {
		count++
		fmt.Fprintf(cmd.OutOrStdout(), "%s gen=%d bins=%d\n", rec.Key, rec.Generation, len(rec.Bins))
		return true
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", count)
	return nil
}
