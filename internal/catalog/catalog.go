// Package catalog is the read-only menu/entity lookup collaborator the
// validator consults when resolving items and their mandatory option
// groups.
package catalog

import "context"

// Item is one catalog entry scoped to a store and kiosk type.
type Item struct {
	ItemID    string `json:"item_id"`
	StoreID   string `json:"store_id"`
	KioskType string `json:"kiosk_type"`

	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int    `json:"price"`
	Currency string `json:"currency"`

	// e.g. {"temperature": ["hot", "iced"], "size": ["S", "M", "L"]}
	OptionGroups         map[string][]string `json:"option_groups,omitempty"`
	RequiredOptionGroups []string            `json:"required_option_groups,omitempty"`

	Tags      []string `json:"tags,omitempty"`
	Dietary   string   `json:"dietary,omitempty"`
	Allergens []string `json:"allergens,omitempty"`

	Available bool `json:"available"`
}

// SearchFilter narrows a catalog search.
type SearchFilter struct {
	Query       string
	Category    string
	BudgetMax   int // 0 = no limit
	Dietary     string
	Temperature string
	Limit       int
}

// Repo is the lookup contract. Implementations must be read-only and
// idempotent. A missing item is (nil, nil), not an error.
type Repo interface {
	GetItemByName(ctx context.Context, storeID, kioskType, name string) (*Item, error)
	SearchItems(ctx context.Context, storeID, kioskType string, filter SearchFilter) ([]Item, error)
}

// RequiredGroups returns the option groups an item demands before it can
// be ordered. When the seeded data carries no explicit list, a
// temperature group with choices is treated as mandatory.
func (it *Item) RequiredGroups() []string {
	if len(it.RequiredOptionGroups) > 0 {
		out := make([]string, 0, len(it.RequiredOptionGroups))
		seen := map[string]bool{}
		for _, g := range it.RequiredOptionGroups {
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
		return out
	}
	if choices := it.OptionGroups["temperature"]; len(choices) > 0 {
		return []string{"temperature"}
	}
	return nil
}
