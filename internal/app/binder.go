package app

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// sessionBindings is the in-memory binding view the binder reads and writes.
// History implements it.
type sessionBindings interface {
	RemoteID(localID string) (string, bool)
	Bind(localID, remoteID string)
}

// Binder maps local session ids to backend session ids, creating the backend
// session on first use. Concurrent Ensure calls for the same local id collapse
// into one create request.
type Binder struct {
	api      *Client
	store    *Store
	sessions sessionBindings
	group    singleflight.Group
	log      *zap.Logger
}

func NewBinder(api *Client, store *Store, sessions sessionBindings, log *zap.Logger) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binder{api: api, store: store, sessions: sessions, log: log}
}

// Ensure returns the remote id bound to localID, creating a backend session if
// none exists yet. On failure every concurrent caller gets the same error and
// the next call retries from scratch.
func (b *Binder) Ensure(ctx context.Context, localID string) (string, error) {
	v, err, _ := b.group.Do(localID, func() (interface{}, error) {
		if id, ok := b.sessions.RemoteID(localID); ok {
			return id, nil
		}
		// The side cache survives restarts; restore it before creating.
		if id, ok := b.store.Binding(localID); ok {
			b.sessions.Bind(localID, id)
			return id, nil
		}

		remoteID, err := b.api.CreateSession(ctx, DefaultTitle)
		if err != nil {
			return "", err
		}
		if err := b.store.SaveBinding(localID, remoteID); err != nil {
			b.log.Warn("persist session binding", zap.String("local_id", localID), zap.Error(err))
		}
		b.sessions.Bind(localID, remoteID)
		b.log.Debug("bound session",
			zap.String("local_id", localID),
			zap.String("remote_id", remoteID))
		return remoteID, nil
	})
	if err != nil {
		b.group.Forget(localID)
		return "", err
	}
	return v.(string), nil
}
