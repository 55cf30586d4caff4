package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type NarrativeRepository struct {
	db *sql.DB
}

func NewNarrativeRepository(db *sql.DB) *NarrativeRepository {
	return &NarrativeRepository{db: db}
}

func (r *NarrativeRepository) UpsertNarrative(ctx context.Context, crd int64, text string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO narratives (crd_number, narrative, embedded_at)
VALUES ($1, $2, $3)
ON CONFLICT (crd_number) DO UPDATE SET
	narrative = EXCLUDED.narrative,
	embedded_at = EXCLUDED.embedded_at
`, crd, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert narrative: %w", err)
	}
	return nil
}

func (r *NarrativeRepository) NarrativesByCRD(ctx context.Context, crds []int64) (map[int64]string, error) {
	if len(crds) == 0 {
		return map[int64]string{}, nil
	}

	placeholders := make([]string, 0, len(crds))
	args := make([]any, 0, len(crds))
	for i, crd := range crds {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, crd)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT crd_number, narrative FROM narratives WHERE crd_number IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query narratives: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(crds))
	for rows.Next() {
		var (
			crd  int64
			text string
		)
		if err := rows.Scan(&crd, &text); err != nil {
			return nil, fmt.Errorf("scan narrative: %w", err)
		}
		out[crd] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate narratives: %w", err)
	}
	return out, nil
}
