// Package db keeps the actuator event log: one row per distinct command sent
// to the vehicle, grouped into sessions.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rov.teleop/internal/version"
)

const (
	KindThrust = "thrust"
	KindLight  = "light"
	KindLaser  = "laser"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
)

var ErrUnknownSession = errors.New("unknown session")

type DB struct {
	*sql.DB
	path string
	now  func() time.Time
}

// OpenDB opens the sqlite database at path without touching the schema.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return &DB{DB: conn, path: path, now: time.Now}, nil
}

// NewDB opens the database and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// StartSession inserts a new session row and returns its id. configJSON is
// stored as-is for later inspection and may be empty.
func (db *DB) StartSession(configJSON string) (string, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at, version, config_json) VALUES (?, ?, ?, ?)`,
		id, db.now().UnixNano(), version.Version, configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// RecordThrust logs a thruster command as [port, vertical, starboard] pulse widths.
func (db *DB) RecordThrust(session string, cmd [3]int) error {
	return db.insertEvent(session, KindThrust, cmd[0], cmd[1], cmd[2], nil)
}

func (db *DB) RecordLight(session string, level float64) error {
	return db.insertEvent(session, KindLight, nil, nil, nil, level)
}

func (db *DB) RecordLaser(session string, state int) error {
	return db.insertEvent(session, KindLaser, nil, nil, nil, float64(state))
}

func (db *DB) insertEvent(session, kind string, port, vertical, starboard, value any) error {
	_, err := db.Exec(
		`INSERT INTO actuator_events (
			session_id, kind, port_us, vertical_us, starboard_us, value, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session, kind, port, vertical, starboard, value, db.now().UnixNano(),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w %q", ErrUnknownSession, session)
		}
		return fmt.Errorf("failed to record %s event: %w", kind, err)
	}
	return nil
}

func isForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Event is one row of the actuator event log. Thrust events carry Command;
// light and laser events carry Value.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Command    *[3]int   `json:"command,omitempty"`
	Value      *float64  `json:"value,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (e *Event) String() string {
	switch {
	case e.Command != nil:
		return fmt.Sprintf("%s %s go(%d,%d,%d)", e.RecordedAt.Format(time.RFC3339Nano), e.Kind, e.Command[0], e.Command[1], e.Command[2])
	case e.Value != nil:
		return fmt.Sprintf("%s %s %g", e.RecordedAt.Format(time.RFC3339Nano), e.Kind, *e.Value)
	}
	return fmt.Sprintf("%s %s", e.RecordedAt.Format(time.RFC3339Nano), e.Kind)
}

// RecentEvents returns up to limit events, newest first. A non-positive
// limit uses DefaultEventLimit; larger limits are capped at MaxEventLimit.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	rows, err := db.Query(`SELECT event_id, session_id, kind, port_us, vertical_us, starboard_us, value, recorded_at
		FROM actuator_events ORDER BY event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var port, vertical, starboard sql.NullInt64
		var value sql.NullFloat64
		var recordedAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &port, &vertical, &starboard, &value, &recordedAt); err != nil {
			return nil, err
		}
		if port.Valid && vertical.Valid && starboard.Valid {
			e.Command = &[3]int{int(port.Int64), int(vertical.Int64), int(starboard.Int64)}
		}
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		e.RecordedAt = time.Unix(0, recordedAt).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Session binds a session id to the database so it can be handed to code
// that records events without knowing about sessions.
type Session struct {
	db *DB
	ID string
}

// Session returns a recorder for an existing session id.
func (db *DB) Session(id string) *Session {
	return &Session{db: db, ID: id}
}

func (s *Session) RecordThrust(cmd [3]int) error   { return s.db.RecordThrust(s.ID, cmd) }
func (s *Session) RecordLight(level float64) error { return s.db.RecordLight(s.ID, level) }
func (s *Session) RecordLaser(state int) error     { return s.db.RecordLaser(s.ID, state) }

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Actuator event log",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("events", "Most recent actuator events", func(w http.ResponseWriter, r *http.Request) {
		events, err := db.RecentEvents(DefaultEventLimit)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read events: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for i := range events {
			fmt.Fprintln(w, events[i].String())
		}
	})
	return nil
}
