package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verba-ai/verba/pkg/config"
	"github.com/verba-ai/verba/pkg/store"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the semantic response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cached query statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.All(cmd.Context())
			if err != nil {
				return err
			}

			var reuses int64
			for _, r := range records {
				reuses += r.UsageCount - 1
			}
			fmt.Printf("Cached queries:  %d\n", len(records))
			fmt.Printf("Exact repeats:   %d\n", reuses)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached queries by usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.All(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%4d  %s\n", r.UsageCount, r.Query)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "verba.yaml", "path to config file")
	cmd.AddCommand(statsCmd, listCmd)
	return cmd
}
