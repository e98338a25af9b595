package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// memBindings is an in-memory sessionBindings for binder tests.
type memBindings struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemBindings() *memBindings { return &memBindings{m: map[string]string{}} }

func (b *memBindings) RemoteID(localID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.m[localID]
	return id, ok && id != ""
}

func (b *memBindings) Bind(localID, remoteID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.m[localID]; !ok {
		b.m[localID] = remoteID
	}
}

func newTestBinder(t *testing.T, handler http.Handler) (*Binder, *memBindings, *Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := NewStore(t.TempDir())
	bindings := newMemBindings()
	client := NewClient(srv.URL, 5*time.Second, store, zap.NewNop())
	return NewBinder(client, store, bindings, zap.NewNop()), bindings, store
}

func TestEnsureConcurrentCallsCreateOnce(t *testing.T) {
	var creates atomic.Int32
	binder, _, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := creates.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]string{"id": fmt.Sprintf("remote-%d", n)},
		})
	}))

	const workers = 16
	results := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = binder.Ensure(context.Background(), "local-1")
		}(i)
	}
	wg.Wait()

	if got := creates.Load(); got != 1 {
		t.Fatalf("expected exactly one create request, got %d", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i] != "remote-1" {
			t.Fatalf("worker %d got %q, want remote-1", i, results[i])
		}
	}
}

func TestEnsureReturnsExistingBinding(t *testing.T) {
	var creates atomic.Int32
	binder, bindings, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "should-not-happen"})
	}))
	bindings.Bind("local-1", "remote-9")

	id, err := binder.Ensure(context.Background(), "local-1")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if id != "remote-9" {
		t.Fatalf("id = %q", id)
	}
	if creates.Load() != 0 {
		t.Fatalf("unexpected create request")
	}
}

func TestEnsureRestoresBindingFromStore(t *testing.T) {
	var creates atomic.Int32
	binder, bindings, store := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "should-not-happen"})
	}))
	if err := store.SaveBinding("local-1", "remote-cached"); err != nil {
		t.Fatal(err)
	}

	id, err := binder.Ensure(context.Background(), "local-1")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if id != "remote-cached" {
		t.Fatalf("id = %q", id)
	}
	if creates.Load() != 0 {
		t.Fatalf("unexpected create request")
	}
	if got, ok := bindings.RemoteID("local-1"); !ok || got != "remote-cached" {
		t.Fatalf("in-memory binding not restored: %q ok=%v", got, ok)
	}
}

func TestEnsureFailureAllowsRetry(t *testing.T) {
	var calls atomic.Int32
	binder, _, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "remote-2"})
	}))

	if _, err := binder.Ensure(context.Background(), "local-1"); err == nil {
		t.Fatal("expected first Ensure to fail")
	}
	id, err := binder.Ensure(context.Background(), "local-1")
	if err != nil {
		t.Fatalf("retry Ensure: %v", err)
	}
	if id != "remote-2" {
		t.Fatalf("id = %q", id)
	}
}

func TestEnsureMissingIDIsError(t *testing.T) {
	binder, _, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	}))
	if _, err := binder.Ensure(context.Background(), "local-1"); err == nil {
		t.Fatal("expected error when backend omits the session id")
	}
}

func TestEnsurePersistsBinding(t *testing.T) {
	binder, _, store := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "remote-1"})
	}))

	if _, err := binder.Ensure(context.Background(), "local-1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if id, ok := store.Binding("local-1"); !ok || id != "remote-1" {
		t.Fatalf("binding not persisted: %q ok=%v", id, ok)
	}
}
