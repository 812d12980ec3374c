package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirekv/wirekv/cmd/bench"
	"github.com/wirekv/wirekv/cmd/client"
	"github.com/wirekv/wirekv/cmd/serve"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "wirekv",
		Short: "networked key-value store",
		Long: fmt.Sprintf(`wirekv (v%s)

A networked key-value store speaking a compact self-describing
binary protocol, with counters and pipelining support.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wirekv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wirekv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.ClientCommands)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
