// Command aspike-cli is a thin cobra front end over the aspike client: one
// subcommand per client operation, for ad-hoc operational use alongside
// the library (the library, not the CLI, is the primary deliverable).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	seeds []string
	log   = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:   "aspike-cli",
	Short: "Operational CLI for the aspike key-value client",
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&seeds, "seeds", nil, "cluster seed host:port list")
	viper.BindPFlag("seeds", rootCmd.PersistentFlags().Lookup("seeds"))

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("aspike-cli: command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
