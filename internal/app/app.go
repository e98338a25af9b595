package app

import (
	"context"

	"go.uber.org/zap"
)

// Application wires the client together: config, storage, API client, and the
// session engine. The TUI and CLI commands operate through it.
type Application struct {
	Config  Config
	Log     *zap.Logger
	Store   *Store
	API     *Client
	History *History
}

func New(cfg Config) (*Application, error) {
	log, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	store := NewStore(cfg.StorageDir)
	api := NewClient(cfg.APIBaseURL, cfg.RequestTimeout, store, log)
	history := NewHistory(store, api, cfg.Topic, log)
	history.Load()

	return &Application{
		Config:  cfg,
		Log:     log,
		Store:   store,
		API:     api,
		History: history,
	}, nil
}

// Login authenticates, persists the token pair, and pulls down the account's
// session list.
func (a *Application) Login(ctx context.Context, email, password string) error {
	creds, err := a.API.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.Store.SaveCredentials(creds); err != nil {
		return err
	}
	if err := a.History.Reconcile(ctx); err != nil {
		a.Log.Warn("initial reconcile failed", zap.Error(err))
	}
	return nil
}

// Signup creates an account and logs in with the returned token pair.
func (a *Application) Signup(ctx context.Context, firstName, lastName, email, password string) error {
	creds, err := a.API.Signup(ctx, firstName, lastName, email, password)
	if err != nil {
		return err
	}
	if err := a.Store.SaveCredentials(creds); err != nil {
		return err
	}
	if err := a.History.Reconcile(ctx); err != nil {
		a.Log.Warn("initial reconcile failed", zap.Error(err))
	}
	return nil
}

func (a *Application) Logout(ctx context.Context) {
	a.History.Logout(ctx)
}

// LoggedIn reports whether a token pair is stored.
func (a *Application) LoggedIn() bool {
	_, ok := a.Store.Credentials()
	return ok
}

// Close flushes pending background work and the logger.
func (a *Application) Close() {
	a.History.Drain()
	_ = a.Log.Sync()
}
