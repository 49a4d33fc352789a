package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var putCmd = &cobra.Command{
	Use:   "put [namespace] [set] [key] [bin] [value]",
	Short: "Write a single bin on a record",
	Args:  cobra.ExactArgs(5),
	RunE:  runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	ns, set, userKey, bin, value := args[0], args[1], args[2], args[3], args[4]

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
	b, err := aspike.NewBin(bin, value)
	if err != nil {
		return err
	}
	if err := client.Put(ctx, aspike.DefaultWritePolicy(), k, b); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
