package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/doorlink-io/doorlink-core/internal/auth"
	"github.com/doorlink-io/doorlink-core/internal/reconcile"
)

func seedInboxMessage(t *testing.T, env *testEnv, topic, payload string) *reconcile.InboxMessage {
	t.Helper()

	msg := &reconcile.InboxMessage{
		Topic:       topic,
		Payload:     payload,
		Fingerprint: reconcile.Fingerprint(topic, []byte(payload)),
	}
	if err := env.srv.inbox.Create(context.Background(), msg); err != nil {
		t.Fatalf("failed to create inbox message: %v", err)
	}
	return msg
}

func TestInboxAdminOnly(t *testing.T) {
	env := newTestServer(t)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	token := tokenFor(t, user)

	for _, path := range []string{"/api/v1/inbox", "/api/v1/inbox/stats", "/api/v1/inbox/msg-x"} {
		w := env.doRequest(http.MethodGet, path, token, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusForbidden)
		}
	}
}

func TestInboxListAndStats(t *testing.T) {
	env := newTestServer(t)
	admin := createTestUser(t, env, "admin@example.com", auth.RoleAdmin)
	token := tokenFor(t, admin)

	seedInboxMessage(t, env, "frontdoor/state", `{"state":"locked"}`)
	seedInboxMessage(t, env, "frontdoor/battery", `{"battery":80}`)

	w := env.doRequest(http.MethodGet, "/api/v1/inbox", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if count := int(resp["count"].(float64)); count != 2 { //nolint:errcheck // count is always a number
		t.Errorf("count = %d, want 2", count)
	}

	w = env.doRequest(http.MethodGet, "/api/v1/inbox/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", w.Code, w.Body.String())
	}
	stats := decodeBody(t, w)
	if total := int(stats["total"].(float64)); total != 2 { //nolint:errcheck // total is always a number
		t.Errorf("total = %d, want 2", total)
	}
	if pending := int(stats["pending"].(float64)); pending != 2 { //nolint:errcheck // pending is always a number
		t.Errorf("pending = %d, want 2", pending)
	}

	w = env.doRequest(http.MethodGet, "/api/v1/inbox?processed=maybe", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestInboxGetAndReprocess(t *testing.T) {
	env := newTestServer(t)
	admin := createTestUser(t, env, "admin@example.com", auth.RoleAdmin)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)
	d := createTestDoor(t, env, user.ID, "frontdoor")
	token := tokenFor(t, admin)

	// Dispatch a real report so the message is linked to the door.
	if err := env.srv.dispatcher.Dispatch(context.Background(), "frontdoor/state", []byte(`{"state":"locked"}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	msgs, err := env.srv.inbox.List(context.Background(), reconcile.InboxFilter{DoorID: d.ID})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("inbox list = %v, err %v", msgs, err)
	}
	id := msgs[0].ID

	w := env.doRequest(http.MethodGet, "/api/v1/inbox/"+id, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["topic"] != "frontdoor/state" {
		t.Errorf("topic = %v, want frontdoor/state", resp["topic"])
	}

	w = env.doRequest(http.MethodPost, "/api/v1/inbox/"+id+"/reprocess", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reprocess status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.doRequest(http.MethodPost, "/api/v1/inbox/msg-missing/reprocess", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing reprocess status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateUserAdminOnly(t *testing.T) {
	env := newTestServer(t)
	admin := createTestUser(t, env, "admin@example.com", auth.RoleAdmin)
	user := createTestUser(t, env, "owner@example.com", auth.RoleUser)

	body := `{"email":"new@example.com","name":"New User","password":"hunter2!","role":"user"}`

	w := env.doRequest(http.MethodPost, "/api/v1/users", tokenFor(t, user), strings.NewReader(body))
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = env.doRequest(http.MethodPost, "/api/v1/users", tokenFor(t, admin), strings.NewReader(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("admin status = %d, body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("create user response leaks password_hash")
	}

	// Duplicate email conflicts.
	w = env.doRequest(http.MethodPost, "/api/v1/users", tokenFor(t, admin), strings.NewReader(body))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", w.Code, http.StatusConflict)
	}

	w = env.doRequest(http.MethodGet, "/api/v1/users", tokenFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if count := int(resp["count"].(float64)); count != 3 { //nolint:errcheck // count is always a number
		t.Errorf("count = %d, want 3", count)
	}
}
