package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/doorlink-io/doorlink-core/internal/auth"
	"github.com/doorlink-io/doorlink-core/internal/door"
)

func TestListDoorsOwnerScoped(t *testing.T) {
	env := newTestServer(t)
	alice := createTestUser(t, env, "alice@example.com", auth.RoleUser)
	bob := createTestUser(t, env, "bob@example.com", auth.RoleUser)
	admin := createTestUser(t, env, "admin@example.com", auth.RoleAdmin)

	createTestDoor(t, env, alice.ID, "alicedoor")
	createTestDoor(t, env, bob.ID, "bobdoor1")
	createTestDoor(t, env, bob.ID, "bobdoor2")

	tests := []struct {
		name string
		user *auth.User
		want int
	}{
		{"owner sees own doors", bob, 2},
		{"other owner sees theirs", alice, 1},
		{"admin sees all", admin, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doRequest(http.MethodGet, "/api/v1/doors", tokenFor(t, tt.user), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			resp := decodeBody(t, w)
			if count := int(resp["count"].(float64)); count != tt.want { //nolint:errcheck // count is always a number
				t.Errorf("count = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestGetDoorHidesForeignDoors(t *testing.T) {
	env := newTestServer(t)
	alice := createTestUser(t, env, "alice@example.com", auth.RoleUser)
	bob := createTestUser(t, env, "bob@example.com", auth.RoleUser)
	admin := createTestUser(t, env, "admin@example.com", auth.RoleAdmin)
	d := createTestDoor(t, env, alice.ID, "alicedoor")

	w := env.doRequest(http.MethodGet, "/api/v1/doors/"+d.ID, tokenFor(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Errorf("owner get status = %d, want %d", w.Code, http.StatusOK)
	}

	// Another user's door reads as not-found, not forbidden, so door IDs
	// are not discoverable.
	w = env.doRequest(http.MethodGet, "/api/v1/doors/"+d.ID, tokenFor(t, bob), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign get status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = env.doRequest(http.MethodGet, "/api/v1/doors/"+d.ID, tokenFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Errorf("admin get status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCreateDoor(t *testing.T) {
	env := newTestServer(t)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	token := tokenFor(t, user)

	w := env.doRequest(http.MethodPost, "/api/v1/doors", token,
		strings.NewReader(`{"name":"Front Door","topic_prefix":"frontdoor","mac_address":"AA:BB:CC:DD:EE:FF"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var created door.Door
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode door: %v", err)
	}
	if created.OwnerID != user.ID {
		t.Errorf("OwnerID = %q, want caller %q", created.OwnerID, user.ID)
	}
	if created.LockState != door.LockStateUnknown {
		t.Errorf("LockState = %q, want unknown", created.LockState)
	}

	// A second door gets its own generated ID.
	w = env.doRequest(http.MethodPost, "/api/v1/doors", token,
		strings.NewReader(`{"name":"Back Door","topic_prefix":"backdoor"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("second create status = %d, body %s", w.Code, w.Body.String())
	}
	var second door.Door
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode door: %v", err)
	}
	if second.ID == "" || second.ID == created.ID {
		t.Errorf("second door ID = %q, first = %q; want distinct non-empty IDs", second.ID, created.ID)
	}

	// Duplicate topic prefix conflicts.
	w = env.doRequest(http.MethodPost, "/api/v1/doors", token,
		strings.NewReader(`{"name":"Back Door","topic_prefix":"frontdoor"}`))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate prefix status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Multi-segment prefix is rejected.
	w = env.doRequest(http.MethodPost, "/api/v1/doors", token,
		strings.NewReader(`{"name":"Side Door","topic_prefix":"a/b"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid prefix status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUpdateDoor(t *testing.T) {
	env := newTestServer(t)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	d := createTestDoor(t, env, user.ID, "frontdoor")

	w := env.doRequest(http.MethodPatch, "/api/v1/doors/"+d.ID, tokenFor(t, user),
		strings.NewReader(`{"name":"Garage"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["name"] != "Garage" {
		t.Errorf("name = %v, want Garage", resp["name"])
	}
	// Untouched fields survive the partial update.
	if resp["topic_prefix"] != "frontdoor" {
		t.Errorf("topic_prefix = %v, want frontdoor", resp["topic_prefix"])
	}
}

func TestDeleteDoor(t *testing.T) {
	env := newTestServer(t)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	d := createTestDoor(t, env, user.ID, "frontdoor")
	token := tokenFor(t, user)

	w := env.doRequest(http.MethodDelete, "/api/v1/doors/"+d.ID, token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = env.doRequest(http.MethodGet, "/api/v1/doors/"+d.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSetDoorCode(t *testing.T) {
	env := newTestServer(t)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	d := createTestDoor(t, env, user.ID, "frontdoor")

	w := env.doRequest(http.MethodPut, "/api/v1/doors/"+d.ID+"/code", tokenFor(t, user),
		strings.NewReader(`{"code":"135790"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// The master code edit went to the device.
	msg := env.mqtt.last(t)
	if msg.topic != "frontdoor/passcodes" {
		t.Errorf("published to %q, want frontdoor/passcodes", msg.topic)
	}
	var payload map[string]any
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["type"] != "master" || payload["code"] != "135790" {
		t.Errorf("payload = %v, want master/135790", payload)
	}

	// And the mirror was updated.
	updated, err := env.srv.doors.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.DoorCode != "135790" {
		t.Errorf("DoorCode = %q, want 135790", updated.DoorCode)
	}
}
