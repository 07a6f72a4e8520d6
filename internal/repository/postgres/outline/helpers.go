package outline

import (
	"context"
	"fmt"
	"strings"

	"tenderplan/internal/domain"
	"tenderplan/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
)

// setClause accumulates "column = $n" assignments for partial updates.
type setClause struct {
	parts []string
	args  []interface{}
}

func (c *setClause) add(column string, value interface{}) {
	c.args = append(c.args, value)
	c.parts = append(c.parts, fmt.Sprintf("%s = $%d", column, len(c.args)))
}

func (c *setClause) empty() bool { return len(c.parts) == 0 }

// sql returns the SET list and the next free placeholder index.
func (c *setClause) sql() (string, int) {
	return strings.Join(append(c.parts, "updated_at = NOW()"), ", "), len(c.args) + 1
}

// execBatch sends every queued statement and checks each result.
func execBatch(ctx context.Context, executor repositories.DBTX, batch *pgx.Batch, expectRows bool, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	results := executor.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("%s (item %d): %w", what, i, err)
		}
		if expectRows && tag.RowsAffected() == 0 {
			return fmt.Errorf("%s (item %d): %w", what, i, domain.ErrNotFound)
		}
	}
	return nil
}
