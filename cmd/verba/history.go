package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verba-ai/verba/pkg/config"
	"github.com/verba-ai/verba/pkg/history"
)

func newHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved chats",
	}

	openStore := func() (*history.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return history.New(cfg.DBPath)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			chats, err := h.ListChats(cmd.Context())
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Println("No chats yet.")
				return nil
			}
			for _, c := range chats {
				title := c.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%s  %s  %s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), title)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a chat transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			msgs, err := h.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("%s: %s\n", m.Role, m.Content)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a chat and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			if err := h.DeleteChat(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Chat deleted.")
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			if err := h.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("All chats deleted.")
			return nil
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <chat-id> <title>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			title := strings.Join(args[1:], " ")
			if err := h.SetTitle(cmd.Context(), args[0], title); err != nil {
				return err
			}
			fmt.Println("Chat renamed.")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "verba.yaml", "path to config file")
	cmd.AddCommand(listCmd, showCmd, deleteCmd, clearCmd, renameCmd)
	return cmd
}
