package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := NewStore(t.TempDir())
	return NewClient(srv.URL, 5*time.Second, store, zap.NewNop()), store
}

func TestDoOmitsBearerWithoutToken(t *testing.T) {
	var sawAuth atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp, err := client.Do(context.Background(), http.MethodGet, "/history", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status: %d", resp.Status)
	}
	if sawAuth.Load() {
		t.Fatal("Authorization header sent without a stored token")
	}
}

func TestDoAttachesBearer(t *testing.T) {
	var got atomic.Value
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	if err := store.SaveCredentials(Credentials{Token: "tok-1"}); err != nil {
		t.Fatal(err)
	}

	if _, err := client.Do(context.Background(), http.MethodGet, "/history", nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got.Load() != "Bearer tok-1" {
		t.Fatalf("Authorization = %v", got.Load())
	}
}

func TestDoErrorStatusIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	resp, err := client.Do(context.Background(), http.MethodGet, "/history", nil)
	if err != nil {
		t.Fatalf("Do returned error for HTTP 500: %v", err)
	}
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("status: %d", resp.Status)
	}
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	var historyCalls, refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		historyCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sessions": []any{}})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "ref-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "fresh", "refreshToken": "ref-2"})
	})

	client, store := newTestClient(t, mux)
	if err := store.SaveCredentials(Credentials{Token: "stale", RefreshToken: "ref-1"}); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(context.Background(), http.MethodGet, "/history", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status after refresh: %d", resp.Status)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls: %d", refreshCalls.Load())
	}
	if historyCalls.Load() != 2 {
		t.Fatalf("expected exactly one retry, history calls: %d", historyCalls.Load())
	}

	creds, ok := store.Credentials()
	if !ok || creds.Token != "fresh" || creds.RefreshToken != "ref-2" {
		t.Fatalf("rotated pair not persisted: %+v", creds)
	}
}

func TestDoRefreshFailureReturnsOriginal401(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, store := newTestClient(t, mux)
	if err := store.SaveCredentials(Credentials{Token: "stale", RefreshToken: "ref-1"}); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(context.Background(), http.MethodGet, "/history", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("expected the original 401, got %d", resp.Status)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls: %d", refreshCalls.Load())
	}

	creds, ok := store.Credentials()
	if !ok {
		t.Fatal("expected credentials still present")
	}
	if creds.Token != "" {
		t.Fatalf("expected access token cleared, got %q", creds.Token)
	}
	if creds.RefreshToken != "ref-1" {
		t.Fatalf("expected refresh token retained, got %q", creds.RefreshToken)
	}
}

func TestDoNoRefreshWithoutRefreshToken(t *testing.T) {
	var historyCalls atomic.Int32
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		historyCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if err := store.SaveCredentials(Credentials{Token: "stale"}); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(context.Background(), http.MethodGet, "/history", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("status: %d", resp.Status)
	}
	if historyCalls.Load() != 1 {
		t.Fatalf("expected no retry, got %d calls", historyCalls.Load())
	}
}

func TestCreateSessionResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  error
	}{
		{"wrapped", `{"session": {"id": "abc"}}`, "abc", nil},
		{"bare", `{"id": "xyz"}`, "xyz", nil},
		{"wrapped wins", `{"session": {"id": "abc"}, "id": "xyz"}`, "abc", nil},
		{"missing id", `{"ok": true}`, "", ErrNoRemoteID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			id, err := client.CreateSession(context.Background(), DefaultTitle)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if id != tt.want {
				t.Fatalf("id = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestListMessagesNormalizesRoles(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"id": "1", "role": "user", "content": "q"},
				{"id": "2", "role": "bot", "content": "a"},
				{"id": "3", "role": "error", "content": "e"},
			},
		})
	}))

	msgs, err := client.ListMessages(context.Background(), "r1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant || msgs[2].Role != RoleError {
		t.Fatalf("roles: %s %s %s", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func TestLoginRequiresToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"email": "a@b.c"}})
	}))
	if _, err := client.Login(context.Background(), "a@b.c", "pw"); err == nil {
		t.Fatal("expected error for login response missing token")
	}
}

func TestAPIErrorMessageExtraction(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "invalid email"}`))
	}))
	_, err := client.Login(context.Background(), "bad", "pw")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid email" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}
