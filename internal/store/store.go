// Package store persists packet history and analytics state to SQLite. The
// schema is managed by golang-migrate from the embedded migrations
// directory, so a fresh database file is ready to use after Open.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/linkquality"
	"github.com/axterm-radio/netwatch/internal/netrom"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// joinStations flattens a station list for storage.
func joinStations(ids []ax25.StationID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func splitStations(s string) []ax25.StationID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]ax25.StationID, len(parts))
	for i, p := range parts {
		out[i] = ax25.StationID(p)
	}
	return out
}

// ArchivePackets appends a batch of packet events to the archive.
func (s *Store) ArchivePackets(events []ax25.PacketEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO packets
		(ts, from_station, to_station, via, class, has_info, payload_len)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.Exec(ev.Timestamp, string(ev.From), string(ev.To),
			joinStations(ev.Via), int(ev.Class), ev.HasInfo, ev.PayloadLen)
		if err != nil {
			return fmt.Errorf("failed to insert packet: %w", err)
		}
	}
	return tx.Commit()
}

// PacketsBetween loads archived packet events with start <= ts < end,
// oldest first.
func (s *Store) PacketsBetween(start, end time.Time) ([]ax25.PacketEvent, error) {
	rows, err := s.db.Query(`SELECT ts, from_station, to_station, via, class, has_info, payload_len
		FROM packets WHERE ts >= ? AND ts < ? ORDER BY ts`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query packets: %w", err)
	}
	defer rows.Close()

	var out []ax25.PacketEvent
	for rows.Next() {
		var ev ax25.PacketEvent
		var from, to, via string
		var class int
		if err := rows.Scan(&ev.Timestamp, &from, &to, &via, &class, &ev.HasInfo, &ev.PayloadLen); err != nil {
			return nil, fmt.Errorf("failed to scan packet: %w", err)
		}
		ev.From = ax25.StationID(from)
		ev.To = ax25.StationID(to)
		ev.Via = splitStations(via)
		ev.Class = ax25.FrameClass(class)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PrunePackets deletes archived packets older than the cutoff and returns
// the number removed.
func (s *Store) PrunePackets(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM packets WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune packets: %w", err)
	}
	return res.RowsAffected()
}

// SaveLinks replaces the persisted link-quality records with the given set.
func (s *Store) SaveLinks(records []linkquality.LinkRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM link_stats`); err != nil {
		return fmt.Errorf("failed to clear link_stats: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO link_stats
		(from_station, to_station, quality, df, dr, observations, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(string(rec.From), string(rec.To), rec.Quality,
			rec.DF, rec.DR, rec.Observations, rec.LastUpdated)
		if err != nil {
			return fmt.Errorf("failed to insert link record: %w", err)
		}
	}
	return tx.Commit()
}

// LoadLinks reads back every persisted link-quality record.
func (s *Store) LoadLinks() ([]linkquality.LinkRecord, error) {
	rows, err := s.db.Query(`SELECT from_station, to_station, quality, df, dr, observations, last_updated
		FROM link_stats ORDER BY from_station, to_station`)
	if err != nil {
		return nil, fmt.Errorf("failed to query link_stats: %w", err)
	}
	defer rows.Close()

	var out []linkquality.LinkRecord
	for rows.Next() {
		var rec linkquality.LinkRecord
		var from, to string
		if err := rows.Scan(&from, &to, &rec.Quality, &rec.DF, &rec.DR, &rec.Observations, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan link record: %w", err)
		}
		rec.From = ax25.StationID(from)
		rec.To = ax25.StationID(to)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveRoutes replaces the persisted route-evidence records with the given
// set.
func (s *Store) SaveRoutes(routes []netrom.Route) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM netrom_routes`); err != nil {
		return fmt.Errorf("failed to clear netrom_routes: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO netrom_routes
		(dest, origin, path, score, last_observed)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range routes {
		_, err := stmt.Exec(string(r.Dest), string(r.Origin), joinStations(r.Path),
			r.Score, r.LastObserved)
		if err != nil {
			return fmt.Errorf("failed to insert route: %w", err)
		}
	}
	return tx.Commit()
}

// LoadRoutes reads back every persisted route-evidence record.
func (s *Store) LoadRoutes() ([]netrom.Route, error) {
	rows, err := s.db.Query(`SELECT dest, origin, path, score, last_observed
		FROM netrom_routes ORDER BY dest, origin`)
	if err != nil {
		return nil, fmt.Errorf("failed to query netrom_routes: %w", err)
	}
	defer rows.Close()

	var out []netrom.Route
	for rows.Next() {
		var r netrom.Route
		var dest, origin, path string
		if err := rows.Scan(&dest, &origin, &path, &r.Score, &r.LastObserved); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		r.Dest = ax25.StationID(dest)
		r.Origin = ax25.StationID(origin)
		r.Path = splitStations(path)
		out = append(out, r)
	}
	return out, rows.Err()
}
