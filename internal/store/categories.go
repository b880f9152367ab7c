package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agora/forum/internal/domain"
)

type categoryRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	Icon        string    `db:"icon"`
	Color       string    `db:"color"`
	OrderIndex  int       `db:"order_index"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r categoryRow) category() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		OrderIndex:  r.OrderIndex,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

var categoryColumns = []string{
	"id", "name", "slug", "description", "icon", "color", "order_index", "created_at",
}

// CategoryExists reports whether a category id is known.
func (s *Store) CategoryExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.get(ctx, &n, s.sb.Select("COUNT(*)").From("categories").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("store: category exists: %w", err)
	}
	return n > 0, nil
}

// CreateCategory inserts c after the last category: OrderIndex is set to the
// current maximum plus one. A duplicate id or slug returns ErrConflict.
// Run it inside WithTx when concurrent creations must not share an index.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	var last int
	err := s.get(ctx, &last, s.sb.Select("COALESCE(MAX(order_index), 0)").From("categories"))
	if err != nil {
		return fmt.Errorf("store: category order: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.OrderIndex = last + 1

	_, err = s.exec(ctx, s.sb.Insert("categories").
		Columns(categoryColumns...).
		Values(c.ID, c.Name, c.Slug, c.Description, c.Icon, c.Color, c.OrderIndex, ts(c.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: create category: %w", err)
	}
	return nil
}

// GetCategory loads one category.
func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var row categoryRow
	err := s.get(ctx, &row, s.sb.Select(categoryColumns...).From("categories").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, wrapRead("get category", err)
	}
	c := row.category()
	return &c, nil
}

// ListCategories returns every category in display order.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	err := s.selectRows(ctx, &rows, s.sb.Select(categoryColumns...).From("categories").
		OrderBy("order_index", "name"))
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.category())
	}
	return out, nil
}

// UpdateCategory rewrites the editable fields of c. The order index and
// creation time are left alone.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	n, err := s.exec(ctx, s.sb.Update("categories").
		Set("name", c.Name).
		Set("slug", c.Slug).
		Set("description", c.Description).
		Set("icon", c.Icon).
		Set("color", c.Color).
		Where(sq.Eq{"id": c.ID}))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: update category: %w", err)
	}
	return mustAffect(n, nil)
}

// DeleteCategory removes an empty category. A category that still holds
// topics returns ErrConflict; a missing one ErrNotFound.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	n, err := s.exec(ctx, s.sb.Delete("categories").
		Where(sq.Eq{"id": id}).
		Where("NOT EXISTS (SELECT 1 FROM topics WHERE category_id = ?)", id))
	if err != nil {
		return fmt.Errorf("store: delete category: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}
