package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "elixir",
		Short: "Cross-reference indexer and query tool",
	}

	root.AddCommand(newUpdateCmd())
	root.AddCommand(newQueryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
