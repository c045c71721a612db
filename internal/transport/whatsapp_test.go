package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wablast/wablast-backend/internal/model"
)

func TestSendTextPostsCloudAPIPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-abc" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.123"}},
		})
	}))
	defer srv.Close()

	c := NewWhatsAppClient("token-abc", "12345", time.Second).WithBaseURL(srv.URL)
	receipt, err := c.SendText(context.Background(), "919000000001", "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.MessageID != "wamid.123" {
		t.Errorf("expected message id from response, got %q", receipt.MessageID)
	}
	if got["to"] != "919000000001" || got["type"] != "text" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestSendButtonsBuildsInteractivePayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.456"}}})
	}))
	defer srv.Close()

	c := NewWhatsAppClient("t", "99", time.Second).WithBaseURL(srv.URL)
	_, err := c.SendButtons(context.Background(), "919000000001", "pick one", []model.Button{
		{ID: "yes", Label: "Yes"},
		{ID: "no", Label: "No"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["type"] != "interactive" {
		t.Errorf("expected interactive payload, got %v", got["type"])
	}
}

func TestSendFailsWithAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid recipient"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWhatsAppClient("t", "99", time.Second).WithBaseURL(srv.URL)
	if _, err := c.SendText(context.Background(), "0", "x"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestConnectedRequiresCredentials(t *testing.T) {
	if NewWhatsAppClient("", "", time.Second).Connected() {
		t.Error("expected not connected without credentials")
	}
	if !NewWhatsAppClient("tok", "id", time.Second).Connected() {
		t.Error("expected connected with credentials")
	}
}
