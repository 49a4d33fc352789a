package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var getCmd = &cobra.Command{
	Use:   "get [namespace] [set] [key]",
	Short: "Read every bin on a record",
	Args:  cobra.ExactArgs(3),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	ns, set, userKey := args[0], args[1], args[2]

	ctx := context.Background()
	client, err := aspike.NewClient(ctx, aspike.DefaultClientConfig(seeds...))
	if err != nil {
		return err
	}
	defer client.Close()

	k, err := aspike.NewKey(ns, set, userKey)
	if err != nil {
		return err
	}
	rec, err := client.Get(ctx, aspike.DefaultPolicy(), k)
	if err != nil {
		return err
	}
	for name, v := range rec.Bins {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", name, v)
	}
	return nil
}
