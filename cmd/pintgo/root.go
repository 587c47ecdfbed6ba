package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pintgo",
	Short: "Build and run bootable kernel disk images",
	Long: `pintgo assembles bootable disk images from a real-mode loader and a
kernel binary, and runs them under an emulator.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printVerbose prints a message when verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
