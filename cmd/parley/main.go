package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	modelFlag   string
	profileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - Chat sessions with structured function calling",
	Long: `Parley manages conversations with a chat completion service whose models
can call functions you declare.

Declare functions from JSON specs or MCP tool servers, chat interactively,
and resume saved sessions. Registry-backed functions run automatically;
anything else is handed to you to answer.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Model to use (overrides config)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Conversation profile to use (e.g. weather)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
