package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/hIndex/cmd/bench"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hindex",
		Short: "hybrid learned ordered-key index",
		Long: fmt.Sprintf(`hIndex (v%s)

A hybrid ordered-key index library written in Go, combining a dynamic
piecewise-geometric index for cheap inserts with a learned interpolation
tree for fast point lookups, and migrating hot entries between the two
in the background.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hIndex",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hIndex v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
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
