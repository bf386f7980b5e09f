package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"raidwatch/internal/raids"
	logx "raidwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeFormat is the stored timestamp layout. Always UTC; naive
// timestamps never enter the table.
const timeFormat = time.RFC3339Nano

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (raids.Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers; one open
	// conn also serializes scheduler and command-path writes on the
	// same key.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Upsert(ctx context.Context, w raids.Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`REPLACE INTO windows (guild_id, name, window_start, window_end, warning_sent, open_sent)
		 VALUES (?,?,?,?,?,?)`,
		w.GuildID, w.Name, fmtTime(w.Start), fmtTime(w.End), boolInt(w.WarningSent), boolInt(w.OpenSent),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, guildID, name string) (raids.Window, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guild_id, name, window_start, window_end, warning_sent, open_sent
		 FROM windows WHERE guild_id = ? AND name = ?`,
		guildID, name,
	)
	w, err := scanWindow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return raids.Window{}, false, nil
	}
	if err != nil {
		return raids.Window{}, false, err
	}
	return w, true, nil
}

func (s *sqliteStore) List(ctx context.Context, guildID string) ([]raids.Window, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, name, window_start, window_end, warning_sent, open_sent
		 FROM windows WHERE guild_id = ? ORDER BY window_end ASC, name ASC`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []raids.Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Guilds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT guild_id FROM windows ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkSent(ctx context.Context, w raids.Window, flag raids.Flag) error {
	col, err := flagColumn(flag)
	if err != nil {
		return err
	}
	// The bounds predicate keeps the update off a replacement row, and
	// a gone row is not an error: a concurrent re-registration or
	// close may have removed it.
	_, err = s.db.ExecContext(ctx,
		`UPDATE windows SET `+col+` = 1
		 WHERE guild_id = ? AND name = ? AND window_start = ? AND window_end = ?`,
		w.GuildID, w.Name, fmtTime(w.Start), fmtTime(w.End),
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, guildID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM windows WHERE guild_id = ? AND name = ?`, guildID, name)
	return err
}

func (s *sqliteStore) DeleteVersion(ctx context.Context, w raids.Window) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM windows
		 WHERE guild_id = ? AND name = ? AND window_start = ? AND window_end = ?`,
		w.GuildID, w.Name, fmtTime(w.Start), fmtTime(w.End),
	)
	return err
}

// flagColumn maps a flag to its column. The allowlist keeps flag names
// out of SQL string building.
func flagColumn(flag raids.Flag) (string, error) {
	switch flag {
	case raids.FlagWarning:
		return "warning_sent", nil
	case raids.FlagOpen:
		return "open_sent", nil
	default:
		return "", fmt.Errorf("unknown window flag %q", flag)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWindow(r rowScanner) (raids.Window, error) {
	var (
		w          raids.Window
		start, end string
		warn, open int
	)
	if err := r.Scan(&w.GuildID, &w.Name, &start, &end, &warn, &open); err != nil {
		return raids.Window{}, err
	}
	var err error
	if w.Start, err = time.Parse(timeFormat, start); err != nil {
		return raids.Window{}, fmt.Errorf("bad window_start %q: %w", start, err)
	}
	if w.End, err = time.Parse(timeFormat, end); err != nil {
		return raids.Window{}, fmt.Errorf("bad window_end %q: %w", end, err)
	}
	w.WarningSent = warn != 0
	w.OpenSent = open != 0
	return w, nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
