package api

import (
	"net/http"
	"strconv"

	"gadgetry/internal/engine"
	"gadgetry/internal/snapshot"
)

// SnapshotHandler handles full-inventory export and import (admin only).
type SnapshotHandler struct {
	Engine *engine.Engine
}

// Export handles GET /api/snapshot.
func (h *SnapshotHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshot.Export(r.Context(), h.Engine.DB())
	if err != nil {
		engineError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="gadgetry-snapshot.json"`)
	jsonResponse(w, http.StatusOK, snap)
}

// Import handles POST /api/snapshot. ?clear=true replaces the inventory
// instead of merging into it.
func (h *SnapshotHandler) Import(w http.ResponseWriter, r *http.Request) {
	clear, _ := strconv.ParseBool(r.URL.Query().Get("clear"))

	var snap snapshot.Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid snapshot body")
		return
	}

	stats, err := snapshot.Import(r.Context(), h.Engine.DB(), &snap, clear)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
