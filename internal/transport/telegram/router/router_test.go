package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	kit "raidwatch/internal/transport"
	logx "raidwatch/pkg/logx"
)

// fakeAdapter records outbound sends.
type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeAdapter) waitFor(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range f.texts() {
			if strings.Contains(s, substr) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no sent message contains %q; got %v", substr, f.texts())
}

func update(fromID int64, text string) kit.Update {
	return kit.Update{Message: &kit.Message{ChatID: -100, FromID: fromID, Text: text}}
}

func startManager(t *testing.T, ad *fakeAdapter, cmds []Command, owners []int64) chan<- kit.Update {
	t.Helper()
	m := NewCommandManager(logx.Nop(), ad, owners)
	ctx, cancel := context.WithCancel(context.Background())
	m.SetRegistry(ctx, cmds)

	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("dispatch loop did not stop")
		}
	})
	return updates
}

func TestDispatchRunsHandler(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	var mu sync.Mutex
	var gotArgs []string

	updates := startManager(t, ad, []Command{{
		Name: "next",
		Handle: func(ctx context.Context, req *Request) error {
			mu.Lock()
			gotArgs = append([]string(nil), req.Args...)
			mu.Unlock()
			_, err := req.Adapter.SendText(ctx, req.Chat, "handled "+req.Command, nil)
			return err
		},
	}}, nil)

	updates <- update(1, "/next queen ant")
	ad.waitFor(t, "handled next")

	mu.Lock()
	defer mu.Unlock()
	if len(gotArgs) != 2 || gotArgs[0] != "queen" || gotArgs[1] != "ant" {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestDispatchResolvesAliasAndBotSuffix(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	updates := startManager(t, ad, []Command{{
		Name:    "raids",
		Aliases: []string{"r"},
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Adapter.SendText(ctx, req.Chat, "raids via "+req.Command, nil)
			return err
		},
	}}, nil)

	updates <- update(1, "/r")
	ad.waitFor(t, "raids via raids")

	updates <- update(1, "/RAIDS@somebot")
	deadline := time.Now().Add(2 * time.Second)
	for {
		n := 0
		for _, s := range ad.texts() {
			if strings.Contains(s, "raids via raids") {
				n++
			}
		}
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("suffixed command not routed; got %v", ad.texts())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	updates := startManager(t, ad, nil, nil)

	updates <- update(1, "/bogus")
	ad.waitFor(t, "unknown command")
}

func TestDispatchIgnoresPlainText(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	updates := startManager(t, ad, nil, nil)

	updates <- update(1, "hello there")
	updates <- update(1, "/help")
	ad.waitFor(t, "Commands")
	if got := ad.texts(); len(got) != 1 {
		t.Fatalf("plain text triggered a reply: %v", got)
	}
}

func TestDispatchOwnerOnly(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	updates := startManager(t, ad, []Command{{
		Name:   "kill",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Adapter.SendText(ctx, req.Chat, "killed", nil)
			return err
		},
	}}, []int64{42})

	updates <- update(7, "/kill orfen")
	ad.waitFor(t, "unauthorized")

	updates <- update(42, "/kill orfen")
	ad.waitFor(t, "killed")
}

func TestHelpListsAndDetails(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	updates := startManager(t, ad, []Command{
		{
			Name:        "next",
			Description: "show the countdown for one boss",
			Usage:       "/next <boss>",
			Handle:      func(context.Context, *Request) error { return nil },
		},
		{
			Name:        "kill",
			Description: "register a boss kill",
			Usage:       "/kill <boss>",
			Access:      AccessOwnerOnly,
			Handle:      func(context.Context, *Request) error { return nil },
		},
	}, []int64{42})

	updates <- update(1, "/help")
	ad.waitFor(t, "/next")
	ad.waitFor(t, "/kill")

	updates <- update(1, "/help next")
	ad.waitFor(t, "/next &lt;boss&gt;")
}

func TestIsOwner(t *testing.T) {
	t.Parallel()
	owners := []int64{1, 2, 3}
	if !isOwner(2, owners) {
		t.Fatal("owner rejected")
	}
	if isOwner(4, owners) {
		t.Fatal("non-owner accepted")
	}
	if isOwner(1, nil) {
		t.Fatal("empty owner list accepted someone")
	}
}
