package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Oracle is a query that returns rows only when an invariant is broken.
type Oracle struct {
	Name string
	SQL  string
}

// All returns the agreement invariants for a signer quorum of quorum.
func All(quorum int) []Oracle {
	return []Oracle{
		{
			Name: "O1_one_signature_per_user",
			SQL: `SELECT a.id, s->>'userId' AS user_id, COUNT(*)
                  FROM agreements a, jsonb_array_elements(a.signers) s
                  GROUP BY a.id, s->>'userId' HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_document_present",
			SQL:  `SELECT id FROM agreements WHERE btrim(pdf_url) = '' OR pdf_public_id = ''`,
		},
		{
			Name: "O3_signed_meets_quorum",
			SQL: fmt.Sprintf(`SELECT id FROM agreements a
                  WHERE status = 'signed'
                    AND (SELECT COUNT(*) FROM jsonb_array_elements(a.signers) s
                         WHERE s->>'signedAt' IS NOT NULL) < %d`, quorum),
		},
		{
			Name: "O4_last_signed_tracked",
			SQL: `SELECT id FROM agreements a
                  WHERE last_signed_at IS NULL
                    AND EXISTS (SELECT 1 FROM jsonb_array_elements(a.signers) s
                                WHERE s->>'signedAt' IS NOT NULL)`,
		},
		{
			Name: "O5_signature_has_event",
			SQL: `SELECT a.id FROM agreements a
                  WHERE jsonb_array_length(a.signers) > 0
                    AND NOT EXISTS (SELECT 1 FROM timeline_events e
                                    WHERE e.agreement_id = a.id AND e.type = 'AGREEMENT_SIGNED')
                    AND a.status <> 'draft'`,
		},
		{
			Name: "O6_active_tenancy_has_signed_agreement",
			SQL: `SELECT t.id FROM tenancies t
                  WHERE t.status = 'active'
                    AND NOT EXISTS (SELECT 1 FROM agreements a
                                    WHERE a.tenancy_id = t.id AND a.status = 'signed')`,
		},
		{
			Name: "O7_outbox_not_stale",
			SQL: `SELECT id FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes every oracle and returns the first failure (name and sample
// row text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool, quorum int) (string, string, error) {
	for _, o := range All(quorum) {
		rows, err := pool.Query(ctx, o.SQL)
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
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
