package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hello",
	Short: "Answer every HTTP request with a fixed greeting",
	Long: "Serve a constant plain-text greeting on $PORT (default 3000) for any method, path, headers or body.\n" +
		"Running without a subcommand is the same as 'hello serve'.",
	Args:          cobra.NoArgs,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFile string
	envFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (YAML or .toml); defaults to $HELLO_CONFIG")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file providing environment defaults (must exist when set explicitly)")
	addServeFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
