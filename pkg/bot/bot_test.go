package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/verba-ai/verba/pkg/cache"
	"github.com/verba-ai/verba/pkg/history"
	"github.com/verba-ai/verba/pkg/models"
	"github.com/verba-ai/verba/pkg/store"
)

// stubEmbedder assigns each distinct text its own axis, so identical
// texts get identical unit vectors and different texts are orthogonal.
type stubEmbedder struct {
	mu   sync.Mutex
	dims map[string]int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{dims: make(map[string]int)}
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dims[text]
	if !ok {
		d = len(e.dims)
		e.dims[text] = d
	}
	if d >= 16 {
		return nil, fmt.Errorf("stub embedder: too many distinct texts")
	}
	v := make([]float32, 16)
	v[d] = 1
	return v, nil
}

type stubGenerator struct {
	calls   int
	reply   string
	err     error
	history []models.ChatMessage
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, history []models.ChatMessage) (string, error) {
	g.calls++
	g.history = history
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestBot(t *testing.T, gen *stubGenerator) (*Bot, *history.Store) {
	t.Helper()
	dir := t.TempDir()

	h, err := history.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })

	st, err := store.New(filepath.Join(dir, "queries.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	emb := newStubEmbedder()
	c, err := cache.New(context.Background(), st, emb, 16, cache.Params{
		HighThreshold: 0.75, LowThreshold: 0.60, TopK: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	return New(h, c, emb, gen), h
}

func TestAskGeneratesAndCaches(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "4"}
	b, h := newTestBot(t, gen)

	chatID, err := h.CreateChat(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	reply, err := b.Ask(ctx, chatID, "What is 2+2?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Cached {
		t.Error("first ask should not be served from cache")
	}
	if reply.Text != "4" {
		t.Errorf("expected 4, got %q", reply.Text)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation, got %d", gen.calls)
	}

	// The identical question in a fresh chat is a fast-path hit.
	chat2, _ := h.CreateChat(ctx, "")
	reply2, err := b.Ask(ctx, chat2, "What is 2+2?")
	if err != nil {
		t.Fatal(err)
	}
	if !reply2.Cached {
		t.Error("expected cache hit for identical question")
	}
	if reply2.Text != "4" {
		t.Errorf("expected cached 4, got %q", reply2.Text)
	}
	if gen.calls != 1 {
		t.Errorf("cache hit must not invoke generation, got %d calls", gen.calls)
	}
}

func TestAskPersistsTranscript(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "hello there"}
	b, h := newTestBot(t, gen)

	chatID, _ := h.CreateChat(ctx, "")
	if _, err := b.Ask(ctx, chatID, "hi"); err != nil {
		t.Fatal(err)
	}

	msgs, err := h.Messages(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}

	// First exchange titles the chat from the prompt.
	chats, _ := h.ListChats(ctx)
	if chats[0].Title != "hi" {
		t.Errorf("expected title from prompt, got %q", chats[0].Title)
	}
}

func TestAskPassesHistoryToGenerator(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "r"}
	b, h := newTestBot(t, gen)

	chatID, _ := h.CreateChat(ctx, "")
	if _, err := b.Ask(ctx, chatID, "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Ask(ctx, chatID, "second question"); err != nil {
		t.Fatal(err)
	}

	if len(gen.history) != 2 {
		t.Fatalf("expected 2 prior messages on second turn, got %d", len(gen.history))
	}
	if gen.history[0].Content != "first question" || gen.history[1].Content != "r" {
		t.Errorf("unexpected history: %+v", gen.history)
	}
}

func TestAskGenerationFailureCachesNothing(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: errors.New("backend down")}
	b, h := newTestBot(t, gen)

	chatID, _ := h.CreateChat(ctx, "")
	if _, err := b.Ask(ctx, chatID, "doomed question"); err == nil {
		t.Fatal("expected generation error to propagate")
	}

	// No assistant message, no cached answer.
	msgs, _ := h.Messages(ctx, chatID)
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Errorf("expected only the user message, got %+v", msgs)
	}

	gen.err = nil
	gen.reply = "recovered"
	reply, err := b.Ask(ctx, chatID, "doomed question")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Cached {
		t.Error("failed generation must not have been cached")
	}
}

func TestTitleFromPrompt(t *testing.T) {
	if got := TitleFromPrompt("short"); got != "short" {
		t.Errorf("expected short, got %q", got)
	}
	long := "this prompt is definitely longer than thirty runes"
	if got := TitleFromPrompt(long); len([]rune(got)) != 30 {
		t.Errorf("expected 30 runes, got %d", len([]rune(got)))
	}
}

func TestAskWithoutCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, err := history.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })

	gen := &stubGenerator{reply: "plain"}
	b := New(h, nil, newStubEmbedder(), gen)

	chatID, _ := h.CreateChat(ctx, "")
	for i := 0; i < 2; i++ {
		reply, err := b.Ask(ctx, chatID, fmt.Sprintf("q%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if reply.Cached {
			t.Error("caching disabled, nothing should be served from cache")
		}
	}
	if gen.calls != 2 {
		t.Errorf("expected 2 generations, got %d", gen.calls)
	}
}
