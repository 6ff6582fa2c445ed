package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

// ModuleCatalog reads the modules table. Rows are written by the catalog
// service; this side only needs pricing and the active flag.
type ModuleCatalog struct {
	db DBTX
}

func NewModuleCatalog(db DBTX) *ModuleCatalog {
	return &ModuleCatalog{db: db}
}

func (r *ModuleCatalog) FindByID(ctx context.Context, id string) (*entity.Module, error) {
	query := `
		SELECT id, title, educator_id, price_cents, currency, is_active, created_at, updated_at
		FROM modules
		WHERE id = ?
	`

	module := &entity.Module{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&module.ID,
		&module.Title,
		&module.EducatorID,
		&module.PriceCents,
		&module.Currency,
		&module.IsActive,
		&module.CreatedAt,
		&module.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return module, nil
}
