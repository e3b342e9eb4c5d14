// Package actors holds raw-SQL workloads that act like a second application
// instance sharing the commissions table: they mutate rows without going
// through the lifecycle store, so the store only learns about them through
// the notification feed.
package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ForeignWriter upserts commissions for one owner directly via SQL. The key
// column is derived the same way the application derives it, so the oracle
// checks hold for foreign rows too.
func ForeignWriter(ctx context.Context, pool *pgxpool.Pool, namespace, ownerID string, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		clientID := fmt.Sprintf("EXT-%03d", rng.Intn(30))
		typ, maxStatus := "FLOWING_SAND", 5
		if rng.Intn(2) == 0 {
			typ, maxStatus = "SCREENSHOT", 4
		}
		now := time.Now().UnixMilli()
		_, err := pool.Exec(ctx, `
			INSERT INTO commissions (namespace, id, client_id, client_name, type, status, note, owner_id, owner_name, contact_info, description, price, created_at, updated_at)
			VALUES ($1,
			        replace(replace($2::text,'%','%25'),'_','%5F') || '_' || replace(replace($3::text,'%','%25'),'_','%5F'),
			        $3, 'ext-' || $3, $4, $5, '', $2, 'External ' || $2, '', '', 0, $6, $6)
			ON CONFLICT (namespace, id) DO UPDATE SET
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at`,
			namespace, ownerID, clientID, typ, rng.Intn(maxStatus+1), now)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("foreign writer upsert: %w", err)
		}
		time.Sleep(time.Duration(20+rng.Intn(40)) * time.Millisecond)
	}
}

// ForeignEraser deletes random rows of one owner directly via SQL.
func ForeignEraser(ctx context.Context, pool *pgxpool.Pool, namespace, ownerID string, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := pool.Exec(ctx, `
			DELETE FROM commissions
			WHERE (namespace, id) IN (
				SELECT namespace, id FROM commissions
				WHERE namespace = $1 AND owner_id = $2
				ORDER BY random() LIMIT 1)`,
			namespace, ownerID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("foreign eraser delete: %w", err)
		}
		time.Sleep(time.Duration(100+rng.Intn(200)) * time.Millisecond)
	}
}
