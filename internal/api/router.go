package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gadgetry/internal/engine"
	"gadgetry/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(eng *engine.Engine, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: eng.DB(), JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: eng.DB()}
	itemsHandler := &ItemsHandler{Engine: eng}
	locationsHandler := &LocationsHandler{Engine: eng}
	snapshotHandler := &SnapshotHandler{Engine: eng}

	authMW := AuthMiddleware(jwtSecret)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login and metrics.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("POST /api/items/{id}/lend", authMW(http.HandlerFunc(itemsHandler.Lend)))
	mux.Handle("POST /api/items/{id}/return", authMW(http.HandlerFunc(itemsHandler.Return)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.GetHistory)))
	mux.Handle("POST /api/items/{id}/attachments", authMW(http.HandlerFunc(itemsHandler.UploadAttachment)))

	// Bulk operations.
	mux.Handle("POST /api/items/bulk/move", authMW(http.HandlerFunc(itemsHandler.BulkMove)))
	mux.Handle("POST /api/items/bulk/lend", authMW(http.HandlerFunc(itemsHandler.BulkLend)))
	mux.Handle("POST /api/items/bulk/delete", authMW(http.HandlerFunc(itemsHandler.BulkDelete)))

	// History corrections and attachments.
	mux.Handle("DELETE /api/history/{id}", authMW(http.HandlerFunc(itemsHandler.DeleteHistoryEntry)))
	mux.Handle("GET /api/attachments/{id}", authMW(http.HandlerFunc(itemsHandler.DownloadAttachment)))
	mux.Handle("DELETE /api/attachments/{id}", authMW(http.HandlerFunc(itemsHandler.DeleteAttachment)))

	// Locations.
	mux.Handle("GET /api/locations", authMW(http.HandlerFunc(locationsHandler.List)))
	mux.Handle("POST /api/locations", authMW(http.HandlerFunc(locationsHandler.Create)))
	mux.Handle("GET /api/locations/tree", authMW(http.HandlerFunc(locationsHandler.Tree)))
	mux.Handle("GET /api/locations/flat", authMW(http.HandlerFunc(locationsHandler.Flat)))
	mux.Handle("GET /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Get)))
	mux.Handle("PUT /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Update)))
	mux.Handle("DELETE /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Delete)))
	mux.Handle("GET /api/locations/{id}/items", authMW(http.HandlerFunc(locationsHandler.Items)))

	// Borrowers and lending overview.
	mux.Handle("GET /api/borrowers", authMW(http.HandlerFunc(locationsHandler.Borrowers)))
	mux.Handle("GET /api/lending", authMW(http.HandlerFunc(locationsHandler.Lending)))

	// Snapshot export/import (admin only).
	mux.Handle("GET /api/snapshot", authMW(requireAdmin(http.HandlerFunc(snapshotHandler.Export))))
	mux.Handle("POST /api/snapshot", authMW(requireAdmin(http.HandlerFunc(snapshotHandler.Import))))

	return mux
}
