package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"gadgetry/internal/auth"
	"gadgetry/internal/db"
	"gadgetry/internal/engine"
	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	eng := engine.New(database, nil, nil, nil, nil)
	server := httptest.NewServer(NewRouter(eng, testJWTSecret))
	t.Cleanup(server.Close)

	// Create admin user and log in.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}

	return server, token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, target any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	server, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	eng := engine.New(db.NewTestDB(t), nil, nil, nil, nil)
	server := httptest.NewServer(NewRouter(eng, testJWTSecret))
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemLifecycleFlow(t *testing.T) {
	server, token := setupTestServer(t)

	// Create.
	var created model.Item
	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]any{
		"name":     "ThinkPad",
		"category": "laptop",
		"specs":    map[string]string{"ram": "32GB"},
	})
	doJSON(t, req, http.StatusCreated, &created)
	if created.Status != model.StatusAvailable {
		t.Errorf("expected new item available, got %q", created.Status)
	}

	// Lend.
	var lent model.Item
	req, _ = authRequest("POST", server.URL+"/api/items/"+created.ID+"/lend", token,
		map[string]string{"borrower_name": "Ana"})
	doJSON(t, req, http.StatusOK, &lent)
	if lent.Status != model.StatusLent {
		t.Errorf("expected lent status, got %q", lent.Status)
	}

	// Lending it again conflicts with the open loan.
	req, _ = authRequest("POST", server.URL+"/api/items/"+created.ID+"/lend", token,
		map[string]string{"borrower_name": "Bor"})
	doJSON(t, req, http.StatusBadRequest, nil)

	// Return.
	var returned model.Item
	req, _ = authRequest("POST", server.URL+"/api/items/"+created.ID+"/return", token, nil)
	doJSON(t, req, http.StatusOK, &returned)
	if returned.Status != model.StatusAvailable {
		t.Errorf("expected available after return, got %q", returned.Status)
	}

	// Detail includes the full trail and ledger.
	var detail engine.ItemDetail
	req, _ = authRequest("GET", server.URL+"/api/items/"+created.ID, token, nil)
	doJSON(t, req, http.StatusOK, &detail)
	if len(detail.Lending) != 1 {
		t.Errorf("expected 1 ledger record, got %d", len(detail.Lending))
	}
	if len(detail.History) != 3 {
		t.Errorf("expected 3 trail entries (created, lent, returned), got %d", len(detail.History))
	}

	// Delete.
	req, _ = authRequest("DELETE", server.URL+"/api/items/"+created.ID, token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/items/"+created.ID, token, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestLocationTreeFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var office model.Location
	req, _ := authRequest("POST", server.URL+"/api/locations", token, map[string]any{
		"name": "Office", "kind": model.LocationKindFixed,
	})
	doJSON(t, req, http.StatusCreated, &office)

	var desk model.Location
	req, _ = authRequest("POST", server.URL+"/api/locations", token, map[string]any{
		"name": "Desk", "kind": model.LocationKindFixed, "parent_id": office.ID,
	})
	doJSON(t, req, http.StatusCreated, &desk)

	var tree []model.LocationNode
	req, _ = authRequest("GET", server.URL+"/api/locations/tree", token, nil)
	doJSON(t, req, http.StatusOK, &tree)
	if len(tree) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tree))
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Desk" {
		t.Errorf("expected Desk under Office")
	}

	// Deleting a location with a child conflicts.
	req, _ = authRequest("DELETE", server.URL+"/api/locations/"+office.ID, token, nil)
	doJSON(t, req, http.StatusConflict, nil)

	req, _ = authRequest("DELETE", server.URL+"/api/locations/"+desk.ID, token, nil)
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("DELETE", server.URL+"/api/locations/"+office.ID, token, nil)
	doJSON(t, req, http.StatusOK, nil)
}

func TestBulkMoveEndpoint(t *testing.T) {
	server, token := setupTestServer(t)

	var box model.Location
	req, _ := authRequest("POST", server.URL+"/api/locations", token, map[string]any{
		"name": "Box", "kind": model.LocationKindContainer,
	})
	doJSON(t, req, http.StatusCreated, &box)

	var ids []string
	for i := 0; i < 2; i++ {
		var item model.Item
		req, _ = authRequest("POST", server.URL+"/api/items", token, map[string]any{
			"name": fmt.Sprintf("Cable %d", i), "category": "accessory",
		})
		doJSON(t, req, http.StatusCreated, &item)
		ids = append(ids, item.ID)
	}

	var result map[string]int
	req, _ = authRequest("POST", server.URL+"/api/items/bulk/move", token, map[string]any{
		"item_ids": append(ids, "ghost"), "location_id": box.ID,
	})
	doJSON(t, req, http.StatusOK, &result)
	if result["moved"] != 2 {
		t.Errorf("expected 2 moved, got %d", result["moved"])
	}
}

func TestSnapshotRoundTripEndpoint(t *testing.T) {
	server, token := setupTestServer(t)

	var item model.Item
	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]any{
		"name": "Exported", "category": "misc",
	})
	doJSON(t, req, http.StatusCreated, &item)

	var snap json.RawMessage
	req, _ = authRequest("GET", server.URL+"/api/snapshot", token, nil)
	doJSON(t, req, http.StatusOK, &snap)

	req, _ = authRequest("POST", server.URL+"/api/snapshot?clear=true", token, snap)
	doJSON(t, req, http.StatusOK, nil)

	var items []model.Item
	req, _ = authRequest("GET", server.URL+"/api/items", token, nil)
	doJSON(t, req, http.StatusOK, &items)
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("expected the exported item back, got %d items", len(items))
	}
}

func TestRoleBasedAccess(t *testing.T) {
	server, _ := setupTestServer(t)

	userToken, _ := auth.GenerateToken(testJWTSecret, 42, "viewer", model.RoleUser)

	// Regular users work with items but not with accounts.
	req, _ := authRequest("GET", server.URL+"/api/items", userToken, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/users", userToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	req, _ = authRequest("GET", server.URL+"/api/snapshot", userToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
}

func TestUsersAdminFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var created model.User
	req, _ := authRequest("POST", server.URL+"/api/users", token, map[string]string{
		"username": "nejc", "password": "longenough1", "role": model.RoleUser,
	})
	doJSON(t, req, http.StatusCreated, &created)

	var users []model.User
	req, _ = authRequest("GET", server.URL+"/api/users", token, nil)
	doJSON(t, req, http.StatusOK, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	req, _ = authRequest("DELETE", server.URL+fmt.Sprintf("/api/users/%d", created.ID), token, nil)
	doJSON(t, req, http.StatusOK, nil)
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
}
