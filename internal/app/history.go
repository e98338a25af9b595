package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// wrapperPrefix marks local ids minted for remote sessions that have no local
// counterpart yet. See Reconcile.
const wrapperPrefix = "srv-"

const sendFailureMessage = "Could not create a chat session. Please try again."

// History is the client's session engine. All reads and mutations of the
// session list go through it; it applies local changes immediately and
// propagates them to the backend best-effort in detached tasks.
//
// Every async update is keyed by the session's local id and re-validated
// under the lock before it lands, so a stale response can never clobber a
// session that was deleted or replaced in the meantime.
type History struct {
	mu       sync.Mutex
	store    *Store
	api      *Client
	binder   *Binder
	log      *zap.Logger
	topic    string
	sessions []Session
	activeID string
	tasks    sync.WaitGroup
}

func NewHistory(store *Store, api *Client, topic string, log *zap.Logger) *History {
	if log == nil {
		log = zap.NewNop()
	}
	h := &History{store: store, api: api, log: log, topic: topic}
	h.binder = NewBinder(api, store, h, log)
	return h
}

// Load reads persisted sessions and restores the active-session pointer. A
// pointer naming a session that no longer exists is discarded.
func (h *History) Load() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions = h.store.LoadSessions()
	current := h.store.CurrentSession()
	if current != "" && h.indexOf(current) < 0 {
		current = ""
	}
	h.activeID = current
}

// Sessions returns a copy of the session list, most recently updated first.
func (h *History) Sessions() []Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Session, len(h.sessions))
	copy(out, h.sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (h *History) ActiveID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeID
}

// Active returns a copy of the active session, or ok=false when none is
// selected.
func (h *History) Active() (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.indexOf(h.activeID)
	if i < 0 {
		return Session{}, false
	}
	return h.sessions[i], true
}

// Select makes localID the active session and, when it is bound to a remote
// session but holds no messages locally, hydrates its transcript in the
// background. Hydration failure is logged, never surfaced.
func (h *History) Select(ctx context.Context, localID string) bool {
	h.mu.Lock()
	i := h.indexOf(localID)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	h.activeID = localID
	needHydrate := h.sessions[i].RemoteID != "" && len(h.sessions[i].Messages) == 0
	remoteID := h.sessions[i].RemoteID
	h.mu.Unlock()

	if err := h.store.SetCurrentSession(localID); err != nil {
		h.log.Warn("persist active session", zap.Error(err))
	}
	if needHydrate {
		h.spawn(ctx, func(ctx context.Context) { h.hydrate(ctx, localID, remoteID) })
	}
	return true
}

// CreateSession adds a new local session with the placeholder title and makes
// it active. No backend session is created until the first message is sent.
func (h *History) CreateSession() Session {
	now := time.Now().UTC()
	sess := Session{
		LocalID:   uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}

	h.mu.Lock()
	h.sessions = append(h.sessions, sess)
	h.activeID = sess.LocalID
	h.persistLocked()
	h.mu.Unlock()

	if err := h.store.SetCurrentSession(sess.LocalID); err != nil {
		h.log.Warn("persist active session", zap.Error(err))
	}
	return sess
}

// RenameSession applies the new title locally and pushes it to the backend
// best-effort when the session is bound.
func (h *History) RenameSession(ctx context.Context, localID, title string) bool {
	if title == "" {
		title = DefaultTitle
	}

	h.mu.Lock()
	i := h.indexOf(localID)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	h.sessions[i].Title = title
	h.sessions[i].UpdatedAt = time.Now().UTC()
	remoteID := h.sessions[i].RemoteID
	h.persistLocked()
	h.mu.Unlock()

	if remoteID != "" {
		h.spawn(ctx, func(ctx context.Context) {
			if err := h.api.RenameSession(ctx, remoteID, title); err != nil {
				h.log.Warn("remote rename failed",
					zap.String("local_id", localID),
					zap.String("remote_id", remoteID),
					zap.Error(err))
			}
		})
	}
	return true
}

// DeleteSession removes the session locally. If it was active, the most
// recently updated remaining session becomes active (or none). The remote
// counterpart is deleted best-effort.
func (h *History) DeleteSession(ctx context.Context, localID string) bool {
	h.mu.Lock()
	i := h.indexOf(localID)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	remoteID := h.sessions[i].RemoteID
	h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
	if h.activeID == localID {
		h.activeID = ""
		var latest time.Time
		for _, s := range h.sessions {
			if s.UpdatedAt.After(latest) || h.activeID == "" {
				latest = s.UpdatedAt
				h.activeID = s.LocalID
			}
		}
	}
	active := h.activeID
	h.persistLocked()
	h.mu.Unlock()

	if err := h.store.SetCurrentSession(active); err != nil {
		h.log.Warn("persist active session", zap.Error(err))
	}
	if remoteID != "" {
		h.spawn(ctx, func(ctx context.Context) {
			if err := h.api.DeleteSession(ctx, remoteID); err != nil {
				h.log.Warn("remote delete failed",
					zap.String("remote_id", remoteID),
					zap.Error(err))
			}
		})
	}
	return true
}

// AppendMessage adds a message to a session, filling in id and timestamp when
// absent. The first user message of a still-placeholder-titled session also
// retitles it. When the session is bound, the message is pushed to the
// backend best-effort.
func (h *History) AppendMessage(ctx context.Context, localID string, msg Message) bool {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	i := h.indexOf(localID)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	h.sessions[i].Messages = append(h.sessions[i].Messages, msg)
	h.sessions[i].UpdatedAt = time.Now().UTC()
	autoTitle := msg.Role == RoleUser && h.sessions[i].Title == DefaultTitle
	remoteID := h.sessions[i].RemoteID
	h.persistLocked()
	h.mu.Unlock()

	if autoTitle {
		// Route through the rename path so the new title also reaches the
		// backend when bound.
		h.RenameSession(ctx, localID, DeriveTitle(msg.Content))
	}
	if remoteID != "" && msg.Role != RoleError {
		h.spawn(ctx, func(ctx context.Context) {
			if err := h.api.AppendMessage(ctx, remoteID, msg); err != nil {
				h.log.Warn("remote append failed",
					zap.String("remote_id", remoteID),
					zap.Error(err))
			}
		})
	}
	return true
}

// Send runs the full question flow: ensure the active session exists and is
// bound, record the user message, ask the backend, record the answer. Failures
// surface as error-role messages in the transcript instead of errors.
func (h *History) Send(ctx context.Context, content string) {
	h.mu.Lock()
	if h.indexOf(h.activeID) < 0 {
		h.mu.Unlock()
		h.CreateSession()
	} else {
		h.mu.Unlock()
	}
	localID := h.ActiveID()

	remoteID, err := h.binder.Ensure(ctx, localID)
	if err != nil {
		h.log.Warn("session create failed", zap.String("local_id", localID), zap.Error(err))
		h.AppendMessage(ctx, localID, Message{Role: RoleError, Content: sendFailureMessage})
		return
	}

	h.AppendMessage(ctx, localID, Message{Role: RoleUser, Content: content})

	answer, err := h.api.Ask(ctx, content, h.topic, remoteID)
	if err != nil {
		h.log.Warn("ask failed", zap.String("local_id", localID), zap.Error(err))
		h.AppendMessage(ctx, localID, Message{Role: RoleError, Content: err.Error()})
		return
	}

	summary := ""
	if len(answer.ShortAnswer) > 0 {
		summary = answer.ShortAnswer[0]
	}
	h.AppendMessage(ctx, localID, Message{Role: RoleAssistant, Content: summary, Answer: answer})
}

// Reconcile merges the backend's session list into local state. Without
// stored credentials it is a no-op. A failed fetch leaves local state
// untouched (all-or-nothing). Remote sessions with no bound local session get
// wrapper entries; local-only sessions are never deleted.
func (h *History) Reconcile(ctx context.Context) error {
	if _, ok := h.store.Credentials(); !ok {
		return nil
	}

	remote, err := h.api.ListSessions(ctx)
	if err != nil {
		h.log.Warn("session list fetch failed", zap.Error(err))
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	byRemote := map[string]int{}
	for i, s := range h.sessions {
		if s.RemoteID != "" {
			byRemote[s.RemoteID] = i
		}
	}

	for _, r := range remote {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		if i, ok := byRemote[r.ID]; ok {
			h.sessions[i].Title = title
			if r.UpdatedAt.After(h.sessions[i].UpdatedAt) {
				h.sessions[i].UpdatedAt = r.UpdatedAt
			}
			continue
		}
		// Wrapper ids are deterministic, so repeated reconciles reuse the
		// same local entry instead of duplicating it.
		wrapperID := wrapperPrefix + r.ID
		if i := h.indexOf(wrapperID); i >= 0 {
			h.sessions[i].Title = title
			if r.UpdatedAt.After(h.sessions[i].UpdatedAt) {
				h.sessions[i].UpdatedAt = r.UpdatedAt
			}
			continue
		}
		h.sessions = append(h.sessions, Session{
			LocalID:   wrapperID,
			RemoteID:  r.ID,
			Title:     title,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			Messages:  []Message{},
		})
	}

	sort.SliceStable(h.sessions, func(i, j int) bool {
		return h.sessions[i].UpdatedAt.After(h.sessions[j].UpdatedAt)
	})
	if h.activeID == "" && len(h.sessions) > 0 {
		h.activeID = h.sessions[0].LocalID
		if err := h.store.SetCurrentSession(h.activeID); err != nil {
			h.log.Warn("persist active session", zap.Error(err))
		}
	}
	h.persistLocked()
	return nil
}

// hydrate fetches a bound session's transcript. The network call runs outside
// the lock; the result only lands if the session still exists and is still
// empty, so a transcript typed while the fetch was in flight wins.
func (h *History) hydrate(ctx context.Context, localID, remoteID string) {
	msgs, err := h.api.ListMessages(ctx, remoteID)
	if err != nil {
		h.log.Warn("hydration failed",
			zap.String("local_id", localID),
			zap.String("remote_id", remoteID),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(localID)
	if i < 0 || len(h.sessions[i].Messages) > 0 {
		return
	}
	h.sessions[i].Messages = msgs
	h.persistLocked()
}

// Logout invalidates the refresh token server-side (best-effort) and clears
// all local state: credentials, bindings, sessions, and the active pointer.
func (h *History) Logout(ctx context.Context) {
	if creds, ok := h.store.Credentials(); ok && creds.RefreshToken != "" {
		if err := h.api.Logout(ctx, creds.RefreshToken); err != nil {
			h.log.Warn("remote logout failed", zap.Error(err))
		}
	}
	if err := h.store.ClearCredentials(); err != nil {
		h.log.Warn("clear credentials", zap.Error(err))
	}
	if err := h.store.ClearBindings(); err != nil {
		h.log.Warn("clear bindings", zap.Error(err))
	}
	if err := h.store.SetCurrentSession(""); err != nil {
		h.log.Warn("clear active session", zap.Error(err))
	}

	h.mu.Lock()
	h.sessions = []Session{}
	h.activeID = ""
	h.persistLocked()
	h.mu.Unlock()
}

// RemoteID reports the in-memory binding for a local session id.
func (h *History) RemoteID(localID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(localID)
	if i < 0 || h.sessions[i].RemoteID == "" {
		return "", false
	}
	return h.sessions[i].RemoteID, true
}

// Bind records a confirmed remote id on a local session. A session already
// bound keeps its original binding.
func (h *History) Bind(localID, remoteID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(localID)
	if i < 0 || h.sessions[i].RemoteID != "" {
		return
	}
	h.sessions[i].RemoteID = remoteID
	h.persistLocked()
}

// Drain blocks until all detached propagation tasks finish. Tests and process
// shutdown use it; the interactive path never waits.
func (h *History) Drain() {
	h.tasks.Wait()
}

// spawn runs a propagation task detached from the caller's context: once a
// mutation is applied locally, its remote push must not die with the caller
// (the TUI cancels its command context as soon as the synchronous part
// returns). The HTTP client's timeout still bounds the detached call.
func (h *History) spawn(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		fn(ctx)
	}()
}

// indexOf requires h.mu held.
func (h *History) indexOf(localID string) int {
	for i, s := range h.sessions {
		if s.LocalID == localID {
			return i
		}
	}
	return -1
}

// persistLocked requires h.mu held.
func (h *History) persistLocked() {
	if err := h.store.SaveSessions(h.sessions); err != nil {
		h.log.Warn("persist sessions", zap.Error(err))
	}
}
