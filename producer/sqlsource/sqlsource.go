// Package sqlsource is a reference producer.Producer implementation
// that streams documents out of a SQL query's result rows, exercising
// the teacher's `squealx` connectivity stack at the producer boundary
// (SPEC_FULL.md §6): the indexed core stays free of SQL/DB concerns
// (spec.md §1 scopes source-document access out) while the domain
// stack still gets a concrete, swappable collaborator to drive it.
//
// Grounded on the teacher's index.go DBRequest/BuildFromDatabase
// (squealx.Config -> connection.FromConfig -> squealx.SelectEach),
// re-expressed as a lazy Producer.Next puller instead of a callback
// that mutates an Index directly.
package sqlsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	"github.com/oarkflow/kese/internal/textutil"
	"github.com/oarkflow/kese/producer"
)

// Config names the database connection and the query that selects
// document rows, mirroring the teacher's DBRequest/DatabaseConfig
// field names.
type Config struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Query    string

	// NameColumn, if set, is used as the document's external name
	// (spec.md §3); TextColumns list the columns concatenated and
	// tokenized into the document's token stream.
	NameColumn  string
	TextColumns []string
}

// Source is a producer.Producer backed by a SQL query's result rows,
// fetched eagerly once on Open and replayed lazily via Next so the
// SPIMI builder still sees a pull-style stream.
type Source struct {
	rows []map[string]any
	cfg  Config
	pos  int
}

// Open connects per cfg, runs cfg.Query, and buffers the resulting
// rows for streaming through Next. The connection is closed before
// Open returns; keSE's build phase only needs the rows, not a live
// connection, per spec.md §1's scope (source access is an external
// collaborator, not part of the indexed core).
func Open(cfg Config) (*Source, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("sqlsource: no query provided")
	}
	db, _, err := connection.FromConfig(squealx.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Driver:   cfg.Driver,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlsource: connect: %w", err)
	}
	defer db.Close()

	var rows []map[string]any
	if err := squealx.SelectEach(db, func(row map[string]any) error {
		rows = append(rows, row)
		return nil
	}, cfg.Query); err != nil {
		return nil, fmt.Errorf("sqlsource: query: %w", err)
	}
	return &Source{rows: rows, cfg: cfg}, nil
}

// Next implements producer.Producer, tokenizing each row's configured
// text columns via the same textutil.Tokenize used for query strings
// so build-time and query-time normalization agree.
func (s *Source) Next(ctx context.Context) (producer.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return producer.Document{}, false, err
	}
	if s.pos >= len(s.rows) {
		return producer.Document{}, false, nil
	}
	row := s.rows[s.pos]
	s.pos++

	var name string
	if s.cfg.NameColumn != "" {
		if v, ok := row[s.cfg.NameColumn]; ok {
			name = fmt.Sprintf("%v", v)
		}
	}

	var text []string
	for _, col := range s.cfg.TextColumns {
		if v, ok := row[col]; ok {
			text = append(text, fmt.Sprintf("%v", v))
		}
	}
	tokens := textutil.Tokenize(strings.Join(text, " "))
	return producer.Document{Name: name, Tokens: tokens}, true, nil
}
