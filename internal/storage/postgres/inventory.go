package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karolberezicki/Foundation/internal/domain/inventory"
)

const queryInventorySQL = `SELECT entry_code, warehouse_code, quantity
	FROM inventory WHERE entry_code = ANY($1) ORDER BY entry_code, warehouse_code`

var _ inventory.Provider = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Provider backed by PostgreSQL.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given
// pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// QueryByEntry returns the stock placements recorded for the given catalog
// codes.
func (r *InventoryRepository) QueryByEntry(ctx context.Context, codes []string) ([]inventory.Record, error) {
	rows, err := r.pool.Query(ctx, queryInventorySQL, codes)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Record, error) {
		var rec inventory.Record
		err := row.Scan(&rec.Code, &rec.WarehouseCode, &rec.Quantity)
		return rec, err
	})
}
