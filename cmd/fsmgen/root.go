package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fsmgen",
	Short: "Generate scanner code from a reduced state machine",
	Long: `fsmgen provides two features:
* Generates the tables and the execution loop of a scanner for a host language.
* Runs a state machine over an input stream and prints the actions it executes.
  This feature is primarily aimed at debugging the state machine.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var rootFlags = struct {
	config *string
}{}

func init() {
	rootFlags.config = rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default: "+defaultConfigFileName+" if present)")
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v %v\n", color.RedString("error:"), err)
		return err
	}
	return nil
}
