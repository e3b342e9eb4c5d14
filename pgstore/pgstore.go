// Package pgstore is the remote persistence backend: a PostgreSQL table with
// trigger-driven change notification. Every committed mutation fires a NOTIFY
// on the commission_changes channel; subscribers re-read the full record set
// per notification, giving the same at-least-once full-snapshot semantics as
// a managed real-time document feed.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"commissionflow/catalog"
	"commissionflow/commission"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying change signals.
const NotifyChannel = "commission_changes"

// Provider implements commission.Provider over PostgreSQL. Records from
// different application namespaces share the table but never each other's
// snapshots.
type Provider struct {
	pool      *pgxpool.Pool
	namespace string
}

// New builds a provider over an existing pool, scoped to one application
// namespace.
func New(pool *pgxpool.Pool, namespace string) (*Provider, error) {
	if namespace == "" {
		return nil, fmt.Errorf("pgstore: empty namespace")
	}
	return &Provider{pool: pool, namespace: namespace}, nil
}

// EnsureSchema creates the commissions table and its notification trigger.
func (p *Provider) EnsureSchema(ctx context.Context) error {
	const schemaSQL = `
		CREATE TABLE IF NOT EXISTS commissions (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			client_name TEXT NOT NULL,
			type TEXT NOT NULL,
			status INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			owner_name TEXT NOT NULL DEFAULT '',
			contact_info TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (namespace, id)
		);

		CREATE OR REPLACE FUNCTION commissions_notify() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('commission_changes', COALESCE(NEW.namespace, OLD.namespace));
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS commissions_changed ON commissions;
		CREATE TRIGGER commissions_changed
		AFTER INSERT OR UPDATE OR DELETE ON commissions
		FOR EACH ROW EXECUTE FUNCTION commissions_notify();
	`

	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

// Write upserts a record by id. The trigger notifies listeners after commit.
func (p *Provider) Write(ctx context.Context, id string, rec commission.Record) error {
	const upsertSQL = `
		INSERT INTO commissions (namespace, id, client_id, client_name, type, status, note, owner_id, owner_name, contact_info, description, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (namespace, id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_name = EXCLUDED.client_name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			note = EXCLUDED.note,
			owner_id = EXCLUDED.owner_id,
			owner_name = EXCLUDED.owner_name,
			contact_info = EXCLUDED.contact_info,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.pool.Exec(ctx, upsertSQL,
		p.namespace, id, rec.ClientID, rec.ClientName, string(rec.Type), rec.Status, rec.Note,
		rec.OwnerID, rec.OwnerName, rec.ContactInfo, rec.Description, rec.Price,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgstore: upsert %s: %w", id, err)
	}
	return nil
}

// Remove deletes a record by id. Deleting an unknown id is not an error.
func (p *Provider) Remove(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM commissions WHERE namespace = $1 AND id = $2`, p.namespace, id); err != nil {
		return fmt.Errorf("pgstore: delete %s: %w", id, err)
	}
	return nil
}

// Subscribe delivers the current record set immediately, then again after
// every change notification for this namespace. The listen loop runs on a
// dedicated connection until the returned cancel function is called or ctx
// ends. In-flight writes are unaffected by teardown.
func (p *Provider) Subscribe(ctx context.Context, onSnapshot func([]commission.Record), onError func(error)) (func(), error) {
	recs, err := p.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	onSnapshot(recs)

	listenCtx, cancel := context.WithCancel(ctx)

	conn, err := p.listen(listenCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer func() {
			if conn != nil {
				conn.Release()
			}
		}()
		for {
			notification, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() != nil {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("pgstore: wait for notification: %w", err))
				}
				conn.Release()
				conn = nil
				conn = p.relisten(listenCtx, onSnapshot, onError)
				if conn == nil {
					return
				}
				continue
			}
			if notification.Payload != p.namespace {
				continue
			}

			recs, err := p.loadAll(listenCtx)
			if err != nil {
				if listenCtx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
				continue
			}
			onSnapshot(recs)
		}
	}()

	return cancel, nil
}

func (p *Provider) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pgstore: listen: %w", err)
	}
	return conn, nil
}

// relisten reconnects after a dropped listen connection, then replays the
// current record set to catch anything notified while the feed was down.
// Returns nil only when ctx is cancelled.
func (p *Provider) relisten(ctx context.Context, onSnapshot func([]commission.Record), onError func(error)) *pgxpool.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}

		conn, err := p.listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if onError != nil {
				onError(err)
			}
			continue
		}

		recs, err := p.loadAll(ctx)
		if err != nil {
			conn.Release()
			if ctx.Err() != nil {
				return nil
			}
			if onError != nil {
				onError(err)
			}
			continue
		}
		onSnapshot(recs)
		return conn
	}
}

func (p *Provider) loadAll(ctx context.Context) ([]commission.Record, error) {
	const selectSQL = `
		SELECT id, client_id, client_name, type, status, note, owner_id, owner_name, contact_info, description, price, created_at, updated_at
		FROM commissions
		WHERE namespace = $1
		ORDER BY created_at, id
	`

	rows, err := p.pool.Query(ctx, selectSQL, p.namespace)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load: %w", err)
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
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		rec.Type = catalog.Type(typ)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: iterate: %w", err)
	}
	return recs, nil
}
