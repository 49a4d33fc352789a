package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synnergy-kv/aspike"
)

var infoCmd = &cobra.Command{
	Use:   "info [command...]",
	Short: "Send an info request to every known node",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := aspike.NewClient(ctx, aspike.DefaultClientConfig(seeds...))
	if err != nil {
		return err
	}
	defer client.Close()

	results, errs := client.InfoForeach(ctx, args...)
	for node, reply := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", node)
		for k, v := range reply {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", k, v)
		}
	}
	for node, err := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", node, err)
	}
	return nil
}
