package api

import (
	"net/http"

	"gadgetry/internal/engine"
	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// LocationsHandler handles location, borrower, and lending-overview
// endpoints. Locations carry no engine transitions, so the handler talks to
// the store directly.
type LocationsHandler struct {
	Engine *engine.Engine
}

type locationRequest struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Icon     string  `json:"icon"`
	ParentID *string `json:"parent_id"`
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListLocations(r.Context(), h.Engine.DB())
	if err != nil {
		engineError(w, err)
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !model.ValidLocationKind(req.Kind) {
		jsonError(w, http.StatusBadRequest, "invalid location kind")
		return
	}

	loc, err := store.CreateLocation(r.Context(), h.Engine.DB(), req.Name, req.Kind, req.Icon, req.ParentID)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, loc)
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	loc, err := store.GetLocation(r.Context(), h.Engine.DB(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if loc == nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Update handles PUT /api/locations/{id}.
func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetLocation(r.Context(), h.Engine.DB(), id)
	if err != nil {
		engineError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	if err := store.UpdateLocation(r.Context(), h.Engine.DB(), id, req.Name, req.Kind, req.Icon, req.ParentID); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := store.GetLocation(r.Context(), h.Engine.DB(), id)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Delete handles DELETE /api/locations/{id}. Deleting a location that still
// holds items or child locations is refused with 409.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteLocation(r.Context(), h.Engine.DB(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "location deleted"})
}

// Tree handles GET /api/locations/tree.
func (h *LocationsHandler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := store.BuildHierarchy(r.Context(), h.Engine.DB())
	if err != nil {
		engineError(w, err)
		return
	}
	if roots == nil {
		roots = []*model.LocationNode{}
	}
	jsonResponse(w, http.StatusOK, roots)
}

// Flat handles GET /api/locations/flat: the pre-order traversal of the tree
// with depth per node, for indented pickers.
func (h *LocationsHandler) Flat(w http.ResponseWriter, r *http.Request) {
	roots, err := store.BuildHierarchy(r.Context(), h.Engine.DB())
	if err != nil {
		engineError(w, err)
		return
	}
	flat := store.Flatten(roots)
	if flat == nil {
		flat = []model.FlatLocation{}
	}
	jsonResponse(w, http.StatusOK, flat)
}

// Items handles GET /api/locations/{id}/items: the items held directly at a
// location (not recursive).
func (h *LocationsHandler) Items(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	loc, err := store.GetLocation(r.Context(), h.Engine.DB(), id)
	if err != nil {
		engineError(w, err)
		return
	}
	if loc == nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	items, err := store.ListItems(r.Context(), h.Engine.DB(), store.ItemFilter{Locality: &id})
	if err != nil {
		engineError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Borrowers handles GET /api/borrowers.
func (h *LocationsHandler) Borrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := store.ListBorrowers(r.Context(), h.Engine.DB())
	if err != nil {
		engineError(w, err)
		return
	}
	if borrowers == nil {
		borrowers = []model.Borrower{}
	}
	jsonResponse(w, http.StatusOK, borrowers)
}

// Lending handles GET /api/lending. ?open=true restricts to open loans.
func (h *LocationsHandler) Lending(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") == "true"

	records, err := store.ListLendings(r.Context(), h.Engine.DB(), openOnly)
	if err != nil {
		engineError(w, err)
		return
	}
	if records == nil {
		records = []model.LendingRecord{}
	}
	jsonResponse(w, http.StatusOK, records)
}
