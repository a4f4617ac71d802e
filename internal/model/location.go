package model

import "time"

// Location is a node in the storage hierarchy (a room, a box, or a person).
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Icon      string    `json:"icon,omitempty"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location kinds.
const (
	LocationKindFixed     = "fixed"
	LocationKindContainer = "container"
	LocationKindPerson    = "person"
)

// ValidLocationKind reports whether k is a known location kind.
func ValidLocationKind(k string) bool {
	switch k {
	case LocationKindFixed, LocationKindContainer, LocationKindPerson:
		return true
	}
	return false
}

// LocationNode is a location with its children attached, as produced by the
// hierarchy build. ItemCount is the number of items directly at this location.
type LocationNode struct {
	Location
	ItemCount int             `json:"item_count"`
	Children  []*LocationNode `json:"children,omitempty"`
}

// FlatLocation is a hierarchy node paired with its depth, for indented
// pickers. Depth is 0 for roots.
type FlatLocation struct {
	Node  *LocationNode `json:"node"`
	Depth int           `json:"depth"`
}
