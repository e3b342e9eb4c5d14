// Package localstore is the demo-mode persistence backend: a single-client
// SQLite file keyed by the application namespace. Writes are synchronous and
// immediately durable. The subscription never carries external updates; it
// only echoes this process's own mutations so consumers stay snapshot-driven.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"commissionflow/catalog"
	"commissionflow/commission"
)

const schema = `
CREATE TABLE IF NOT EXISTS commissions (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	client_name TEXT NOT NULL,
	type TEXT NOT NULL,
	status INTEGER NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	owner_id TEXT NOT NULL,
	owner_name TEXT NOT NULL DEFAULT '',
	contact_info TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Provider implements commission.Provider over a local SQLite file.
type Provider struct {
	db *sql.DB

	mu         sync.Mutex
	onSnapshot func([]commission.Record)
}

// Open creates or opens the namespace's data file under dir and ensures the
// schema exists.
func Open(dir, namespace string) (*Provider, error) {
	if namespace == "" {
		return nil, fmt.Errorf("localstore: empty namespace")
	}

	path := filepath.Join(dir, namespace+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	// The file is single-client; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: ensure schema: %w", err)
	}

	return &Provider{db: db}, nil
}

// Close releases the underlying database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Write upserts a record by id and echoes a fresh snapshot.
func (p *Provider) Write(ctx context.Context, id string, rec commission.Record) error {
	const upsertSQL = `
		INSERT INTO commissions (id, client_id, client_name, type, status, note, owner_id, owner_name, contact_info, description, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_name = excluded.client_name,
			type = excluded.type,
			status = excluded.status,
			note = excluded.note,
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			contact_info = excluded.contact_info,
			description = excluded.description,
			price = excluded.price,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`

	_, err := p.db.ExecContext(ctx, upsertSQL,
		id, rec.ClientID, rec.ClientName, string(rec.Type), rec.Status, rec.Note,
		rec.OwnerID, rec.OwnerName, rec.ContactInfo, rec.Description, rec.Price,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("localstore: upsert %s: %w", id, err)
	}

	return p.echo(ctx)
}

// Remove deletes a record by id. Removing an unknown id is not an error.
func (p *Provider) Remove(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM commissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", id, err)
	}
	return p.echo(ctx)
}

// Subscribe registers the single snapshot consumer and delivers the current
// set immediately.
func (p *Provider) Subscribe(ctx context.Context, onSnapshot func([]commission.Record), onError func(error)) (func(), error) {
	p.mu.Lock()
	p.onSnapshot = onSnapshot
	p.mu.Unlock()

	if err := p.echo(ctx); err != nil {
		return nil, err
	}

	return func() {
		p.mu.Lock()
		p.onSnapshot = nil
		p.mu.Unlock()
	}, nil
}

func (p *Provider) echo(ctx context.Context) error {
	p.mu.Lock()
	fn := p.onSnapshot
	p.mu.Unlock()
	if fn == nil {
		return nil
	}

	recs, err := p.loadAll(ctx)
	if err != nil {
		return err
	}
	fn(recs)
	return nil
}

func (p *Provider) loadAll(ctx context.Context) ([]commission.Record, error) {
	const selectSQL = `
		SELECT id, client_id, client_name, type, status, note, owner_id, owner_name, contact_info, description, price, created_at, updated_at
		FROM commissions
		ORDER BY created_at, id
	`

	rows, err := p.db.QueryContext(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("localstore: load: %w", err)
	}
	defer rows.Close()

	var recs []commission.Record
	for rows.Next() {
		var rec commission.Record
		var typ string
		if err := rows.Scan(
			&rec.ID, &rec.ClientID, &rec.ClientName, &typ, &rec.Status, &rec.Note,
			&rec.OwnerID, &rec.OwnerName, &rec.ContactInfo, &rec.Description, &rec.Price,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("localstore: scan: %w", err)
		}
		rec.Type = catalog.Type(typ)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: iterate: %w", err)
	}
	return recs, nil
}
