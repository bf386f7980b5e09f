package router

import (
	"html"
	"sort"
	"strings"
)

// helpText renders Telegram-friendly help in HTML parse mode.
func (m *CommandManager) helpText(args []string) string {
	m.mu.RLock()
	table := m.cmds
	order := append([]string(nil), m.order...)
	m.mu.RUnlock()

	if len(args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(args[0]), "/"))
		if c, ok := table[name]; ok {
			return helpCommandHTML(c)
		}
		return "❓ <b>Unknown command</b>\nTry <code>/help</code> for the full list."
	}

	type row struct {
		name string
		desc string
		lock bool
	}
	rows := make([]row, 0, len(order))
	for _, name := range order {
		c := table[name]
		if c == nil {
			continue
		}
		rows = append(rows, row{name: name, desc: c.Description, lock: c.Access == AccessOwnerOnly})
	}
	// Owner-only commands at the bottom, alphabetical within groups.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	lines := []string{
		"📚 <b>Commands</b>",
		"Type <code>/help &lt;command&gt;</code> for details.",
		"",
	}
	for _, r := range rows {
		prefix := "• "
		if r.lock {
			prefix = "• 🔒 "
		}
		line := prefix + "<code>/" + html.EscapeString(r.name) + "</code>"
		if r.desc != "" {
			line += " — " + html.EscapeString(r.desc)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func helpCommandHTML(c *Command) string {
	lines := []string{"📚 <b>Help</b> <code>/" + html.EscapeString(c.Name) + "</code>"}
	if d := strings.TrimSpace(c.Description); d != "" {
		lines = append(lines, html.EscapeString(d))
	}
	if c.Access == AccessOwnerOnly {
		lines = append(lines, "🔒 <i>Owner only</i>")
	}
	if u := strings.TrimSpace(c.Usage); u != "" {
		lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(u)+"</code>")
	}
	if len(c.Aliases) > 0 {
		parts := make([]string, 0, len(c.Aliases))
		for _, a := range c.Aliases {
			parts = append(parts, "<code>/"+html.EscapeString(a)+"</code>")
		}
		lines = append(lines, "", "<b>Aliases</b>", strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}
