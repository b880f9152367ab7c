package enforcement

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/store"
)

const (
	maxCategoryName        = 100
	maxCategoryDescription = 500
	maxCategoryStyle       = 64
)

var categorySlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CategoryInput is the editable part of a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (in CategoryInput) validate() error {
	switch {
	case in.Name == "":
		return domain.Validation("name is required")
	case utf8.RuneCountInString(in.Name) > maxCategoryName:
		return domain.Validation("name must be at most %d characters", maxCategoryName)
	case in.Slug == "":
		return domain.Validation("slug is required")
	case !categorySlug.MatchString(in.Slug):
		return domain.Validation("slug may only contain lowercase letters, digits and dashes")
	case utf8.RuneCountInString(in.Description) > maxCategoryDescription:
		return domain.Validation("description must be at most %d characters", maxCategoryDescription)
	case len(in.Icon) > maxCategoryStyle || len(in.Color) > maxCategoryStyle:
		return domain.Validation("icon and color must be at most %d characters", maxCategoryStyle)
	}
	return nil
}

func (in CategoryInput) trimmed() CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Description = strings.TrimSpace(in.Description)
	in.Icon = strings.TrimSpace(in.Icon)
	in.Color = strings.TrimSpace(in.Color)
	return in
}

// CreateCategory appends a category after the existing ones.
func (s *Service) CreateCategory(ctx context.Context, actorID string, in CategoryInput) (c *domain.Category, err error) {
	defer record("create_category", &err)
	in = in.trimmed()
	c = &domain.Category{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		Icon:        in.Icon,
		Color:       in.Color,
		CreatedAt:   s.Now().UTC(),
	}
	err = s.contentAction(ctx, actorID, "category", c.ID, func() error {
		if err := in.validate(); err != nil {
			return err
		}
		err := s.repo.Atomic(ctx, func(r Repository) error {
			return r.CreateCategory(ctx, c)
		})
		if errors.Is(err, store.ErrConflict) {
			return domain.Rejected("category slug %q is already taken", in.Slug)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCategory replaces the editable fields of a category.
func (s *Service) UpdateCategory(ctx context.Context, actorID, categoryID string, in CategoryInput) (err error) {
	defer record("update_category", &err)
	in = in.trimmed()
	return s.contentAction(ctx, actorID, "category", categoryID, func() error {
		if err := in.validate(); err != nil {
			return err
		}
		err := s.repo.UpdateCategory(ctx, &domain.Category{
			ID:          categoryID,
			Name:        in.Name,
			Slug:        in.Slug,
			Description: in.Description,
			Icon:        in.Icon,
			Color:       in.Color,
		})
		if errors.Is(err, store.ErrConflict) {
			return domain.Rejected("category slug %q is already taken", in.Slug)
		}
		return err
	})
}

// DeleteCategory removes a category. Its topics must be moved or deleted
// first.
func (s *Service) DeleteCategory(ctx context.Context, actorID, categoryID string) (err error) {
	defer record("delete_category", &err)
	return s.contentAction(ctx, actorID, "category", categoryID, func() error {
		err := s.repo.DeleteCategory(ctx, categoryID)
		if errors.Is(err, store.ErrConflict) {
			return domain.Rejected("category still has topics")
		}
		return err
	})
}
