package menu

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

// MenuRepository is a plain record store; menu items have no lifecycle.
type MenuRepository struct {
	db *sql.DB
}

func NewMenuRepository(db *sql.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

// ListAvailable returns the items a waiter can order from, grouped the
// way the menu is displayed.
func (r *MenuRepository) ListAvailable(ctx context.Context) ([]domain.MenuItem, error) {
	return r.list(ctx, `
		SELECT id, name, price, description, category, available, created_at
		FROM menu_items
		WHERE available
		ORDER BY category, name
	`)
}

func (r *MenuRepository) ListAll(ctx context.Context) ([]domain.MenuItem, error) {
	return r.list(ctx, `
		SELECT id, name, price, description, category, available, created_at
		FROM menu_items
		ORDER BY category, name
	`)
}

func (r *MenuRepository) list(ctx context.Context, query string) ([]domain.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.MenuItem{}
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Description,
			&item.Category, &item.Available, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MenuRepository) Create(ctx context.Context, item *domain.MenuItem) error {
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, name, price, description, category, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Name, item.Price, item.Description, item.Category, item.Available, item.CreatedAt)
	return err
}

func (r *MenuRepository) Update(ctx context.Context, item *domain.MenuItem) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $2, price = $3, description = $4, category = $5, available = $6
		WHERE id = $1
	`, item.ID, item.Name, item.Price, item.Description, item.Category, item.Available)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *MenuRepository) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	item := &domain.MenuItem{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, description, category, available, created_at
		FROM menu_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Price, &item.Description,
		&item.Category, &item.Available, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *MenuRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
