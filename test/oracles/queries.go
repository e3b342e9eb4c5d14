// Package oracles holds SQL invariant checks run against the commissions
// table after a stress run. Each oracle is a query that must return no rows.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_known_type",
			SQL: `SELECT namespace, id, type FROM commissions
                  WHERE namespace = $1 AND type NOT IN ('FLOWING_SAND','SCREENSHOT')`,
		},
		{
			Name: "O2_status_in_range",
			SQL: `SELECT namespace, id, type, status FROM commissions
                  WHERE namespace = $1
                    AND (status < 0
                         OR (type = 'FLOWING_SAND' AND status > 5)
                         OR (type = 'SCREENSHOT' AND status > 4))`,
		},
		{
			Name: "O3_key_matches_identity",
			SQL: `SELECT namespace, id, owner_id, client_id FROM commissions
                  WHERE namespace = $1
                    AND id <> replace(replace(owner_id, '%', '%25'), '_', '%5F')
                              || '_'
                              || replace(replace(client_id, '%', '%25'), '_', '%5F')`,
		},
		{
			Name: "O4_timestamps_ordered",
			SQL: `SELECT namespace, id, created_at, updated_at FROM commissions
                  WHERE namespace = $1 AND updated_at < created_at`,
		},
		{
			Name: "O5_client_name_present",
			SQL: `SELECT namespace, id FROM commissions
                  WHERE namespace = $1 AND btrim(client_name) = ''`,
		},
		{
			Name: "O6_price_non_negative",
			SQL: `SELECT namespace, id, price FROM commissions
                  WHERE namespace = $1 AND price < 0`,
		},
		{
			Name: "O7_notify_trigger_present",
			SQL: `SELECT 'missing_commissions_changed_trigger' AS detail
                  WHERE $1 <> '' AND NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'commissions_changed')`,
		},
	}
}

// Run executes all oracles for one namespace and returns the first failure
// (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool, namespace string) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL, namespace)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
