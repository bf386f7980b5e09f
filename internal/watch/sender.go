package watch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"raidwatch/internal/raids"
	kit "raidwatch/internal/transport"
)

// Sender dispatches one milestone announcement. Failures are the
// caller's to log; they must never be fatal.
type Sender interface {
	Send(ctx context.Context, to kit.ChatTarget, kind raids.Kind, bossName string) error
}

// Resolver maps a guild to its announce destination. ok=false means
// the guild has no destination configured and sends are skipped.
type Resolver interface {
	Resolve(guildID string) (kit.ChatTarget, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(guildID string) (kit.ChatTarget, bool)

func (f ResolverFunc) Resolve(guildID string) (kit.ChatTarget, bool) { return f(guildID) }

// ChatSender sends announcements through the chat adapter. Each send
// is bounded by its own timeout so one unreachable destination cannot
// stall the sweep, and all sends share a rate limiter to stay inside
// Telegram flood limits.
type ChatSender struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	timeout time.Duration
	lead    atomic.Int64
}

func NewChatSender(adapter kit.Adapter, ratePerSec int, timeout, warningLead time.Duration) *ChatSender {
	if ratePerSec < 1 {
		ratePerSec = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &ChatSender{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		timeout: timeout,
	}
	s.lead.Store(int64(warningLead))
	return s
}

// SetLead updates the lead mentioned in warning texts. Safe to call
// while sends are in flight.
func (s *ChatSender) SetLead(lead time.Duration) {
	s.lead.Store(int64(lead))
}

func (s *ChatSender) Send(ctx context.Context, to kit.ChatTarget, kind raids.Kind, bossName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.adapter.SendText(ctx, to, announceText(kind, bossName, time.Duration(s.lead.Load())), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

func announceText(kind raids.Kind, bossName string, lead time.Duration) string {
	name := raids.Title(bossName)
	switch kind {
	case raids.KindWarning:
		return fmt.Sprintf("⏳ <b>%s window opens in %s!</b>", name, leadText(lead))
	case raids.KindOpen:
		return fmt.Sprintf("🔥 <b>%s SPAWN WINDOW OPEN!</b>", name)
	case raids.KindClose:
		return fmt.Sprintf("❌ <b>%s spawn window closed.</b>", name)
	default:
		return fmt.Sprintf("<b>%s</b>: %s", name, kind)
	}
}

func leadText(lead time.Duration) string {
	if lead <= 0 {
		lead = 30 * time.Minute
	}
	if lead%time.Hour == 0 {
		h := int(lead / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(lead/time.Minute))
}
