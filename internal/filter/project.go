// Package filter derives filtered, ordered views of the conversation
// list. Projection is a pure function over value snapshots: it never
// mutates its input and identical inputs always produce identical output,
// which keeps it trivially memoizable and testable.
package filter

import (
	"sort"
	"strings"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// Category selects a slice of the conversation list by what the
// conversation is about and which side of it the user is on.
type Category string

const (
	CategoryAll         Category = "all"
	CategoryBookingRole Category = "bookingRole"
	CategoryListingRole Category = "listingRole"
	CategorySupport     Category = "support"
)

// Criterion is an ephemeral filter description. It is derived UI state,
// never persisted.
type Criterion struct {
	Category   Category
	SearchText string
	// SelfID lets the free-text match consider the other participant's
	// display name rather than the user's own.
	SelfID int64
}

// Project returns the conversations matching criterion, most recently
// active first (stable for ties). The result is a fresh slice of value
// copies; mutating the input afterwards does not affect it.
func Project(conversations []model.Conversation, criterion Criterion) []model.Conversation {
	out := make([]model.Conversation, 0, len(conversations))
	needle := strings.ToLower(strings.TrimSpace(criterion.SearchText))
	for i := range conversations {
		c := &conversations[i]
		if !matchesCategory(c, criterion.Category) {
			continue
		}
		if needle != "" && !matchesText(c, needle, criterion.SelfID) {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// matchesCategory applies the category rules in precedence order:
// support/dispute types beat everything, then the booking bucket (booking
// and inquiry types, or a renter role), then the listing bucket. A
// conversation matches at most one of the three specific buckets.
func matchesCategory(c *model.Conversation, cat Category) bool {
	support := c.Type == model.TypeSupport || c.Type == model.TypeDispute
	booking := c.Type == model.TypeBooking || c.Type == model.TypeInquiry || c.Role == model.RoleRenter

	switch cat {
	case CategorySupport:
		return support
	case CategoryBookingRole:
		if support {
			return false
		}
		return booking
	case CategoryListingRole:
		if support || booking {
			return false
		}
		return c.Type == model.TypeListing || c.Role == model.RoleHost
	case CategoryAll, "":
		return true
	default:
		return true
	}
}

// matchesText is a case-insensitive substring match against the title,
// the other participant's display name, and the last-message preview.
func matchesText(c *model.Conversation, needle string, selfID int64) bool {
	if strings.Contains(strings.ToLower(c.Title), needle) {
		return true
	}
	other := c.OtherParticipant(selfID)
	if strings.Contains(strings.ToLower(other.DisplayName), needle) {
		return true
	}
	if c.LastMessage != nil && strings.Contains(strings.ToLower(c.LastMessage.Content), needle) {
		return true
	}
	return false
}
