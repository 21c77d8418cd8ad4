// Package sqlstore implements domain.Store on database/sql. The same
// queries serve SQLite and PostgreSQL; they are written with ? placeholders
// and rebound per dialect.
package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"chat_backend/internal/domain"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a domain.Store backed by a *sql.DB it owns.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Messages() domain.MessageRepository {
	return &MessageRepo{db: s.db, q: s.dialect.rebind, now: s.now}
}

func (s *Store) Groups() domain.GroupRepository {
	return &GroupRepo{db: s.db, q: s.dialect.rebind, now: s.now}
}

func (s *Store) DB() *sql.DB  { return s.db }
func (s *Store) Close() error { return s.db.Close() }
