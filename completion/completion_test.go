package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(handler http.HandlerFunc) (*Client, func()) {
	srv := httptest.NewServer(handler)
	return &Client{URL: srv.URL, APIKey: "test-key", HTTP: srv.Client()}, srv.Close
}

func TestCompleteSuccess(t *testing.T) {
	var got Request
	client, done := testClient(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": map[string]interface{}{
				"reply":             "How long do you have?",
				"askedConfirmation": false,
			},
		})
	})
	defer done()

	res, err := client.Complete(context.Background(), Request{
		RoleOrAction: "excursion_creator.planning.duration",
		Input:        Input{Message: "I want a hike"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "How long do you have?" {
		t.Fatalf("reply = %q", res.Reply)
	}
	if res.ReadyToCreate {
		t.Fatal("readyToCreate must default to false when absent")
	}
	if res.AskedConfirmation == nil || *res.AskedConfirmation {
		t.Fatalf("askedConfirmation = %v, want explicit false", res.AskedConfirmation)
	}
	if got.RoleOrAction != "excursion_creator.planning.duration" {
		t.Fatalf("request role_or_action = %q", got.RoleOrAction)
	}
}

func TestCompleteAskedConfirmationAbsent(t *testing.T) {
	client, done := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"reply":"hi"}}`))
	})
	defer done()

	res, err := client.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AskedConfirmation != nil {
		t.Fatalf("askedConfirmation = %v, want nil when absent", *res.AskedConfirmation)
	}
}

func TestCompleteProviderError(t *testing.T) {
	client, done := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":{"message":"quota exhausted","code":"rate_limited"}}`))
	})
	defer done()

	_, err := client.Complete(context.Background(), Request{})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Code != "rate_limited" || pe.Message != "quota exhausted" {
		t.Fatalf("provider error = %+v", pe)
	}
}

func TestCompleteMalformedReplies(t *testing.T) {
	bodies := []string{
		`not json at all`,
		`{"ok":true}`,
		`{"ok":true,"result":{}}`,
		`{"ok":false}`,
	}
	for _, body := range bodies {
		b := body
		client, done := testClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(b))
		})
		_, err := client.Complete(context.Background(), Request{})
		done()
		if !errors.Is(err, ErrMalformedReply) {
			t.Fatalf("body %q: expected ErrMalformedReply, got %v", body, err)
		}
	}
}

func TestCompleteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := &Client{URL: srv.URL, APIKey: "k", HTTP: srv.Client()}
	srv.Close()

	_, err := client.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on dead endpoint, got %v", err)
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	client := &Client{}
	_, err := client.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	t.Setenv("COMPLETION_URL", "")
	t.Setenv("COMPLETION_API_KEY", "")
	if _, err := NewFromEnv(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("NewFromEnv with empty env: %v", err)
	}
}
