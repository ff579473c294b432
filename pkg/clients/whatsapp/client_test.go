package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mamadbah2/farmwatch/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.WhatsAppConfig{
		AccessToken:   "token",
		PhoneNumberID: "12345",
		BaseURL:       srv.URL,
		APIVersion:    "v20.0",
	})
}

func TestSendText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v20.0/12345/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization %q", got)
		}

		var msg textMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if msg.To != "221770000000" || msg.Type != "text" || msg.Text.Body != "hello" || msg.MessagingProduct != "whatsapp" {
			t.Errorf("unexpected payload %+v", msg)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	})

	id, err := c.SendText(context.Background(), "+221770000000", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "wamid.1" {
		t.Errorf("expected wamid.1, got %q", id)
	}
}

func TestSendText_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient not in allowed list","code":131030}}`))
	})

	if _, err := c.SendText(context.Background(), "  ", "hello"); !errors.Is(err, ErrEmptyRecipient) {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}

	_, err := c.SendText(context.Background(), "221770000000", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 131030 || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}
