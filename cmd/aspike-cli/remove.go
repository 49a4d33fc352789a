package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var removeCmd = &cobra.Command{
	Use:   "remove [namespace] [set] [key]",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(3),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
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
	existed, err := client.Remove(ctx, aspike.DefaultWritePolicy(), k)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), existed)
	return nil
}
