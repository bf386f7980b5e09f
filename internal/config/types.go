package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Raids    RaidsConfig    `json:"raids"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives warn+ log lines (optional).
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RaidsConfig controls the window tracker and its announce sweep.
//
// All durations are Go duration strings (e.g. "30m", "15s", "33h").
type RaidsConfig struct {
	// WarningLead is how long before window open the early warning
	// fires. Defaults to "30m".
	WarningLead string `json:"warning_lead,omitempty"`

	// Tick is the sweep interval. Defaults to "15s"; keep it at or
	// under a minute or milestone announcements get noticeably late.
	Tick string `json:"tick,omitempty"`

	// SendTimeout bounds one announce send so a stalled destination
	// cannot hold up the rest of the sweep. Defaults to "10s".
	SendTimeout string `json:"send_timeout,omitempty"`

	// SendRatePerSec caps outbound announcements (Telegram flood
	// control). Defaults to 5.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`

	// DefaultTimer overrides the fallback profile used for bosses that
	// have no timer entry.
	DefaultTimer *TimerConfig `json:"default_timer,omitempty"`

	// Timers adds to or overrides the built-in per-boss timer table.
	// Keys are boss names (normalized on load).
	Timers map[string]TimerConfig `json:"timers,omitempty"`

	// Destinations maps a guild id to the chat that receives its
	// announcements. Guilds without an entry are still tracked, just
	// silently.
	Destinations map[string]DestinationConfig `json:"destinations,omitempty"`
}

type TimerConfig struct {
	Fixed  string `json:"fixed"`
	Jitter string `json:"jitter"`
}

type DestinationConfig struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

type StorageConfig struct {
	// Driver is "sqlite" (default) or "memory" (tests/dev only; loses
	// state on restart).
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
