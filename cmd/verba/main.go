package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "verba",
		Short:   "Verba — terminal chat with a semantic response cache",
		Version: version,
	}

	root.AddCommand(
		newChatCmd(),
		newHistoryCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
