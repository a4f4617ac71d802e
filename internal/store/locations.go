package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"gadgetry/internal/model"
)

// CreateLocation creates a new storage location.
func CreateLocation(ctx context.Context, q Querier, name, kind, icon string, parentID *string) (*model.Location, error) {
	if !model.ValidLocationKind(kind) {
		return nil, fmt.Errorf("invalid location kind %q", kind)
	}

	id := model.NewID()
	_, err := q.ExecContext(ctx,
		`INSERT INTO locations (id, name, kind, icon, parent_id) VALUES (?, ?, ?, ?, ?)`,
		id, name, kind, nullString(icon), parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	return GetLocation(ctx, q, id)
}

// GetLocation returns a location by ID, or nil if it does not exist.
func GetLocation(ctx context.Context, q Querier, id string) (*model.Location, error) {
	loc := &model.Location{}
	var icon sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, kind, icon, parent_id, created_at FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.Kind, &icon, &loc.ParentID, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	loc.Icon = icon.String
	return loc, nil
}

// ListLocations returns all locations ordered by name.
func ListLocations(ctx context.Context, q Querier) ([]model.Location, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, kind, icon, parent_id, created_at FROM locations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var loc model.Location
		var icon sql.NullString
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Kind, &icon, &loc.ParentID, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		loc.Icon = icon.String
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// UpdateLocation updates a location's fields. A location may not be its own
// parent; longer ancestor cycles are not checked.
func UpdateLocation(ctx context.Context, q Querier, id, name, kind, icon string, parentID *string) error {
	if !model.ValidLocationKind(kind) {
		return fmt.Errorf("invalid location kind %q", kind)
	}
	if parentID != nil && *parentID == id {
		return fmt.Errorf("location cannot be its own parent")
	}

	_, err := q.ExecContext(ctx,
		`UPDATE locations SET name = ?, kind = ?, icon = ?, parent_id = ? WHERE id = ?`,
		name, kind, nullString(icon), parentID, id,
	)
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	return nil
}

// ErrLocationInUse is returned when deleting a location that still owns
// items or child locations.
var ErrLocationInUse = fmt.Errorf("location still has items or child locations")

// DeleteLocation removes a location. Fails with ErrLocationInUse while items
// or child locations reference it; nothing cascades.
func DeleteLocation(ctx context.Context, q Querier, id string) error {
	var items, children int
	err := q.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM items WHERE location_id = ?),
		        (SELECT COUNT(*) FROM locations WHERE parent_id = ?)`,
		id, id,
	).Scan(&items, &children)
	if err != nil {
		return fmt.Errorf("checking location contents: %w", err)
	}
	if items > 0 || children > 0 {
		return fmt.Errorf("%w: %d items, %d children", ErrLocationInUse, items, children)
	}

	_, err = q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	return nil
}

// BuildHierarchy loads all locations with their direct item counts and
// assembles the parent/child tree in a single pass. Roots are locations with
// no parent or with a dangling parent reference. Each call materializes a
// fresh tree; siblings are ordered by name.
func BuildHierarchy(ctx context.Context, q Querier) ([]*model.LocationNode, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.name, l.kind, l.icon, l.parent_id, l.created_at,
		        (SELECT COUNT(*) FROM items i WHERE i.location_id = l.id) AS item_count
		 FROM locations l
		 ORDER BY l.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading hierarchy: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*model.LocationNode)
	var order []*model.LocationNode
	for rows.Next() {
		node := &model.LocationNode{}
		var icon sql.NullString
		if err := rows.Scan(&node.ID, &node.Name, &node.Kind, &icon, &node.ParentID,
			&node.CreatedAt, &node.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning hierarchy node: %w", err)
		}
		node.Icon = icon.String
		byID[node.ID] = node
		order = append(order, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var roots []*model.LocationNode
	for _, node := range order {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := byID[*node.ParentID]
		if !ok {
			// Dangling parent reference: surface the node as a root rather
			// than dropping it.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sort.SliceStable(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	return roots, nil
}

// Flatten produces the pre-order traversal of a hierarchy as (node, depth)
// pairs, for flat indentable pickers.
func Flatten(roots []*model.LocationNode) []model.FlatLocation {
	var flat []model.FlatLocation
	var walk func(node *model.LocationNode, depth int)
	walk = func(node *model.LocationNode, depth int) {
		flat = append(flat, model.FlatLocation{Node: node, Depth: depth})
		for _, child := range node.Children {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return flat
}
