// Package bot wires the raid tracker into chat commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"raidwatch/internal/raids"
	kit "raidwatch/internal/transport"
	"raidwatch/internal/transport/telegram/router"
)

// GuildID derives the isolation scope from the chat a command came
// from. Every chat tracks its own timers.
func GuildID(chat kit.ChatTarget) string {
	return strconv.FormatInt(chat.ChatID, 10)
}

// Commands returns the raid tracker command table.
func Commands(svc *raids.Service) []router.Command {
	return []router.Command{
		{
			Name:        "kill",
			Aliases:     []string{"k"},
			Description: "register a boss kill and start its window",
			Usage:       "/kill <boss>",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      handleKill(svc),
		},
		{
			Name:        "next",
			Aliases:     []string{"n"},
			Description: "show the countdown for one boss",
			Usage:       "/next <boss>",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      handleNext(svc),
		},
		{
			Name:        "raids",
			Aliases:     []string{"r"},
			Description: "show countdowns for all tracked bosses",
			Usage:       "/raids",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      handleRaids(svc),
		},
		{
			Name:        "forget",
			Description: "drop a tracked window without announcing",
			Usage:       "/forget <boss>",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      handleForget(svc),
		},
	}
}

func reply(ctx context.Context, req *router.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

func handleKill(svc *raids.Service) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		raw := strings.Join(req.Args, " ")
		w, err := svc.Register(ctx, GuildID(req.Chat), raw, time.Now())
		if errors.Is(err, raids.ErrInvalidName) {
			return reply(ctx, req, "Which boss? Usage: <code>/kill &lt;boss&gt;</code>")
		}
		if err != nil {
			_ = reply(ctx, req, "Could not save the timer, try again.")
			return err
		}
		return reply(ctx, req, fmt.Sprintf(
			"🔥 <b>%s</b> spawn window:\nStart: %s\nEnd: %s",
			raids.Title(w.Name), raids.FormatUTC(w.Start), raids.FormatUTC(w.End),
		))
	}
}

func handleNext(svc *raids.Service) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		raw := strings.Join(req.Args, " ")
		st, err := svc.Lookup(ctx, GuildID(req.Chat), raw, time.Now())
		switch {
		case errors.Is(err, raids.ErrInvalidName):
			return reply(ctx, req, "Which boss? Usage: <code>/next &lt;boss&gt;</code>")
		case errors.Is(err, raids.ErrNotFound):
			return reply(ctx, req, fmt.Sprintf("No active timer for %s.", raids.Title(raids.Normalize(raw))))
		case err != nil:
			_ = reply(ctx, req, "Could not read the timer, try again.")
			return err
		}

		name := raids.Title(st.Window.Name)
		switch st.Phase {
		case raids.Pending:
			return reply(ctx, req, fmt.Sprintf(
				"🔥 <b>%s</b>\n\n⏳ Window opens in: %s", name, raids.FormatCountdown(st.Remaining)))
		case raids.Active:
			return reply(ctx, req, fmt.Sprintf(
				"🔥 <b>%s</b>\n\n⚔ <b>SPAWN WINDOW ACTIVE</b>\n❌ Closes in: %s", name, raids.FormatCountdown(st.Remaining)))
		default:
			return reply(ctx, req, fmt.Sprintf("%s window already closed.", name))
		}
	}
}

func handleRaids(svc *raids.Service) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		list, err := svc.Overview(ctx, GuildID(req.Chat), time.Now())
		if err != nil {
			_ = reply(ctx, req, "Could not read the timers, try again.")
			return err
		}
		if len(list) == 0 {
			return reply(ctx, req, "No active raid timers.")
		}

		var b strings.Builder
		for i, st := range list {
			if i > 0 {
				b.WriteString("\n\n")
			}
			name := raids.Title(st.Window.Name)
			if st.Phase == raids.Active {
				fmt.Fprintf(&b, "🔥 <b>%s</b>\n⚔ ACTIVE — closes in: %s", name, raids.FormatCountdown(st.Remaining))
			} else {
				fmt.Fprintf(&b, "🔥 <b>%s</b>\n⏳ Opens in: %s", name, raids.FormatCountdown(st.Remaining))
			}
		}
		return reply(ctx, req, b.String())
	}
}

func handleForget(svc *raids.Service) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		raw := strings.Join(req.Args, " ")
		err := svc.Forget(ctx, GuildID(req.Chat), raw)
		switch {
		case errors.Is(err, raids.ErrInvalidName):
			return reply(ctx, req, "Which boss? Usage: <code>/forget &lt;boss&gt;</code>")
		case errors.Is(err, raids.ErrNotFound):
			return reply(ctx, req, fmt.Sprintf("No active timer for %s.", raids.Title(raids.Normalize(raw))))
		case err != nil:
			_ = reply(ctx, req, "Could not drop the timer, try again.")
			return err
		}
		return reply(ctx, req, fmt.Sprintf("Dropped the %s timer.", raids.Title(raids.Normalize(raw))))
	}
}
