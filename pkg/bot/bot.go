// Package bot drives a conversation turn: consult the semantic cache,
// fall back to fresh generation, and persist the transcript.
package bot

import (
	"context"
	"log"

	"github.com/verba-ai/verba/pkg/cache"
	"github.com/verba-ai/verba/pkg/history"
	"github.com/verba-ai/verba/pkg/models"
)

// Generator produces an answer to a prompt given the conversation so far.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []models.ChatMessage) (string, error)
}

// Embedder turns text into a fixed-dimension unit vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Text   string
	Cached bool
}

// Bot ties the chat store, the semantic cache and the generation
// backend together.
type Bot struct {
	history   *history.Store
	cache     *cache.Semantic // nil when caching is disabled
	embedder  Embedder
	generator Generator
}

// New creates a Bot. cache may be nil to disable semantic caching.
func New(h *history.Store, c *cache.Semantic, e Embedder, g Generator) *Bot {
	return &Bot{history: h, cache: c, embedder: e, generator: g}
}

// Ask processes one user prompt in the given chat: the user message is
// persisted, the cache is consulted, and only on a miss is the
// generation backend invoked and its answer recorded. A failed
// generation leaves nothing cached.
func (b *Bot) Ask(ctx context.Context, chatID, prompt string) (Reply, error) {
	// Conversation context excludes the prompt itself; Generate appends it.
	prior, err := b.history.Messages(ctx, chatID)
	if err != nil {
		return Reply{}, err
	}

	if err := b.history.SaveMessage(ctx, chatID, "user", prompt); err != nil {
		return Reply{}, err
	}

	if b.cache != nil {
		resp, ok, err := b.cache.Lookup(ctx, prompt)
		if err != nil {
			return Reply{}, err
		}
		if ok {
			if err := b.finishTurn(ctx, chatID, prompt, resp, len(prior)); err != nil {
				return Reply{}, err
			}
			return Reply{Text: resp, Cached: true}, nil
		}
	}

	chatHistory := make([]models.ChatMessage, 0, len(prior))
	for _, m := range prior {
		chatHistory = append(chatHistory, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	text, err := b.generator.Generate(ctx, prompt, chatHistory)
	if err != nil {
		return Reply{}, err
	}

	if b.cache != nil {
		// The reply stands even when recording it fails; the next
		// identical question just pays for generation again.
		if vec, err := b.embedder.Embed(ctx, prompt); err != nil {
			log.Printf("embed for cache record: %v", err)
		} else if err := b.cache.Record(ctx, prompt, vec, text); err != nil {
			log.Printf("cache record: %v", err)
		}
	}

	if err := b.finishTurn(ctx, chatID, prompt, text, len(prior)); err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Cached: false}, nil
}

// finishTurn saves the assistant message and titles the chat after its
// first exchange.
func (b *Bot) finishTurn(ctx context.Context, chatID, prompt, response string, priorCount int) error {
	if err := b.history.SaveMessage(ctx, chatID, "assistant", response); err != nil {
		return err
	}
	if priorCount == 0 {
		if err := b.history.SetTitle(ctx, chatID, TitleFromPrompt(prompt)); err != nil {
			return err
		}
	}
	return nil
}

// TitleFromPrompt derives a chat title from its opening prompt,
// truncated to 30 runes.
func TitleFromPrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= 30 {
		return prompt
	}
	return string(runes[:30])
}
