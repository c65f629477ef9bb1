package core

import (
	"context"
	"sort"
	"time"
)

type (
	// Guide is a named, optionally published page composed of elements.
	// It exclusively owns its element collection.
	Guide struct {
		ID          string    `json:"id"`
		OwnerID     string    `json:"owner_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Published   bool      `json:"is_published"`
		Slug        string    `json:"slug,omitempty"`
		Elements    []Element `json:"elements,omitempty"` // Only loaded by Get lookups.
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	GuideFilter struct {
		OwnerID       string
		PublishedOnly bool
	}

	// ElementReplacer is the persistence hand-off used by editor sessions.
	ElementReplacer interface {
		// ReplaceElements deletes every stored element of the guide and inserts
		// the given ones in order. It returns the stored elements carrying their
		// storage-assigned ids, in the same order.
		ReplaceElements(ctx context.Context, guideID string, elements []Element) ([]Element, error)
	}

	// GuideStore defines the persistence layer for guides.
	GuideStore interface {
		ElementReplacer

		// ListGuides returns guide metadata, newest first, without elements.
		ListGuides(ctx context.Context, filter GuideFilter) ([]*Guide, error)

		// GetGuide returns a guide together with its elements in insertion order.
		GetGuide(ctx context.Context, id string) (*Guide, error)

		// GetGuideBySlug looks up a published guide by its share slug.
		GetGuideBySlug(ctx context.Context, slug string) (*Guide, error)

		// CreateGuide stores a new guide and assigns its ID and timestamps.
		CreateGuide(ctx context.Context, guide *Guide) error

		// UpdateGuide stores title, description, publish flag and slug.
		UpdateGuide(ctx context.Context, guide *Guide) error

		DeleteGuide(ctx context.Context, id string) error
	}
)

// RenderOrder returns the elements sorted by layer for z-ordering. Elements
// sharing a layer keep their collection order.
func (g *Guide) RenderOrder() []Element {
	out := make([]Element, len(g.Elements))
	copy(out, g.Elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Layer < out[j].Layer
	})
	return out
}

// EditableBy reports whether user may change the guide: its owner, or any
// moderator or owner role.
func (g *Guide) EditableBy(user *User) bool {
	if user == nil {
		return false
	}
	return g.OwnerID == user.ID || user.Role.CanModerate()
}
