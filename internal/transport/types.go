package transport

import "context"

// Message is one inbound chat message, already flattened from the
// platform-specific update shape.
type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

// Update wraps an inbound event handed from the adapter to the router.
type Update struct {
	Message *Message
}

// ChatTarget addresses an outbound send.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef identifies a message the bot has sent.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the chat platform boundary. Start pushes inbound updates
// into out until ctx is canceled or Stop is called; both are safe to
// call more than once.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// BotCommand is a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface for adapters that can
// publish a platform command menu (Telegram setMyCommands).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
