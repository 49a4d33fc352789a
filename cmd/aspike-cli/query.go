package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var queryCmd = &cobra.Command{
	Use:   "query [namespace] [set] [bin] [begin] [end]",
	Short: "Run a secondary-index range query",
	Args:  cobra.ExactArgs(5),
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ns, set, bin := args[0], args[1], args[2]
	begin, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("bad begin value: %w", err)
	}
	end, err := strconv.ParseInt(args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("bad end value: %w", err)
	}

	ctx := context.Background()
	client, err := aspike.NewClient(ctx, aspike.DefaultClientConfig(seeds...))
	if err != nil {
		return err
	}
	defer client.Close()

	filter := aspike.NewRangeFilter(bin, begin, end)
	count := 0
	err = client.Query(ctx, aspike.DefaultQueryPolicy(), ns, set, filter, func(rec *aspike.Record) bool {
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
