package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verba-ai/verba/pkg/bot"
	"github.com/verba-ai/verba/pkg/cache"
	"github.com/verba-ai/verba/pkg/config"
	"github.com/verba-ai/verba/pkg/history"
	"github.com/verba-ai/verba/pkg/ollama"
	"github.com/verba-ai/verba/pkg/store"
)

func newChatCmd() *cobra.Command {
	var configPath string
	var chatID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg, chatID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "verba.yaml", "path to config file")
	cmd.Flags().StringVar(&chatID, "chat", "", "resume an existing chat by ID")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, chatID string) error {
	h, err := history.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	client := ollama.New(cfg.Ollama, nil)

	var sem *cache.Semantic
	if cfg.Cache.Enabled {
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		// The rebuild needs the embedding width; probe the provider once
		// so the index dimension matches whatever model is configured.
		probe, err := client.Embed(ctx, "verba")
		if err != nil {
			return fmt.Errorf("probe embedding model: %w", err)
		}
		sem, err = cache.New(ctx, st, client, len(probe), cache.Params{
			HighThreshold: cfg.Cache.HighThreshold,
			LowThreshold:  cfg.Cache.LowThreshold,
			TopK:          cfg.Cache.TopK,
		})
		if err != nil {
			return err
		}
	}

	b := bot.New(h, sem, client, client)

	if chatID != "" {
		msgs, err := h.Messages(ctx, chatID)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Println("Type a message, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			break
		}

		if chatID == "" {
			chatID, err = h.CreateChat(ctx, "")
			if err != nil {
				return err
			}
		}

		reply, err := b.Ask(ctx, chatID, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if reply.Cached {
			fmt.Printf("%s  (cached)\n", reply.Text)
		} else {
			fmt.Println(reply.Text)
		}
	}
	return scanner.Err()
}
