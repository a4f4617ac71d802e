package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"gadgetry/internal/engine"
	"gadgetry/internal/imaging"
	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// ItemsHandler handles item endpoints. All mutation goes through the engine.
type ItemsHandler struct {
	Engine *engine.Engine
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ItemFilter{
		Status:   query.Get("status"),
		Category: query.Get("category"),
		Brand:    query.Get("brand"),
		Query:    query.Get("q"),
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))

	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	items, err := store.ListItems(r.Context(), h.Engine.DB(), filter)
	if err != nil {
		engineError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft model.ItemDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.CreateItem(r.Context(), &draft)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Engine.GetItemDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if detail.History == nil {
		detail.History = []model.HistoryEntry{}
	}
	if detail.Lending == nil {
		detail.Lending = []model.LendingRecord{}
	}
	if detail.Attachments == nil {
		detail.Attachments = []model.Attachment{}
	}
	jsonResponse(w, http.StatusOK, detail)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var draft model.ItemDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.UpdateItem(r.Context(), r.PathValue("id"), &draft)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

type lendRequest struct {
	BorrowerName string     `json:"borrower_name"`
	DueDate      *time.Time `json:"due_date"`
}

// Lend handles POST /api/items/{id}/lend.
func (h *ItemsHandler) Lend(w http.ResponseWriter, r *http.Request) {
	var req lendRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.LendItem(r.Context(), r.PathValue("id"), req.BorrowerName, req.DueDate)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Return handles POST /api/items/{id}/return.
func (h *ItemsHandler) Return(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.ReturnItem(r.Context(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

type bulkMoveRequest struct {
	ItemIDs    []string `json:"item_ids"`
	LocationID *string  `json:"location_id"`
}

// BulkMove handles POST /api/items/bulk/move.
func (h *ItemsHandler) BulkMove(w http.ResponseWriter, r *http.Request) {
	var req bulkMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "item_ids required")
		return
	}

	moved, err := h.Engine.BulkMoveItems(r.Context(), req.ItemIDs, req.LocationID)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"moved": moved})
}

type bulkLendRequest struct {
	ItemIDs      []string   `json:"item_ids"`
	BorrowerName string     `json:"borrower_name"`
	DueDate      *time.Time `json:"due_date"`
}

// BulkLend handles POST /api/items/bulk/lend.
func (h *ItemsHandler) BulkLend(w http.ResponseWriter, r *http.Request) {
	var req bulkLendRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "item_ids required")
		return
	}

	lent, err := h.Engine.BulkLendItems(r.Context(), req.ItemIDs, req.BorrowerName, req.DueDate)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"lent": lent})
}

type bulkDeleteRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// BulkDelete handles POST /api/items/bulk/delete.
func (h *ItemsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "item_ids required")
		return
	}

	deleted, err := h.Engine.BulkDeleteItems(r.Context(), req.ItemIDs)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// GetHistory handles GET /api/items/{id}/history.
func (h *ItemsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := store.ListItemHistory(r.Context(), h.Engine.DB(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// DeleteHistoryEntry handles DELETE /api/history/{id}. An explicit user
// correction; normal transitions never remove trail entries.
func (h *ItemsHandler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteHistoryEntry(r.Context(), h.Engine.DB(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "history entry deleted"})
}

// UploadAttachment handles POST /api/items/{id}/attachments.
func (h *ItemsHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	// Limit to 20 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)

	if err := r.ParseMultipartForm(20 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	att, err := h.Engine.AddAttachment(r.Context(), r.PathValue("id"), header.Filename, mime, file)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, att)
}

// DownloadAttachment handles GET /api/attachments/{id}.
func (h *ItemsHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	att, rc, err := h.Engine.OpenAttachment(r.Context(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", att.Mime)
	io.Copy(w, rc)
}

// DeleteAttachment handles DELETE /api/attachments/{id}.
func (h *ItemsHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RemoveAttachment(r.Context(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "attachment deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := store.GetItem(r.Context(), h.Engine.DB(), id)
	if err != nil {
		engineError(w, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.Engine.DB(), id, processed.Data, processed.MIME); err != nil {
		engineError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemImage(r.Context(), h.Engine.DB(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
