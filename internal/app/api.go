package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrNoRemoteID is returned when the backend acknowledges a session create
// but the response carries no identifier. Proceeding without one would leave
// the local session bound to nothing.
var ErrNoRemoteID = errors.New("backend did not return a session id")

// APIError carries a non-2xx backend response. The wrapper itself never
// converts HTTP statuses into errors; the typed endpoint helpers do.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: HTTP %d", e.Status)
}

// Client talks to the legal-answer backend. All calls go through Do, which
// attaches the stored bearer token and transparently performs at most one
// refresh-and-retry cycle on 401.
type Client struct {
	baseURL string
	http    *http.Client
	store   *Store
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, store *Store, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		store:   store,
		log:     log,
	}
}

type apiResponse struct {
	Status int
	Body   []byte
}

func (r *apiResponse) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *apiResponse) decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// asError extracts the backend's message/error field for non-2xx responses.
func (r *apiResponse) asError() error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(r.Body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	return &APIError{Status: r.Status, Message: msg}
}

// Do issues an authenticated request. On 401 with a refresh token available
// it refreshes once, persists the rotated pair, and retries the original
// request exactly once. On refresh failure the access token is cleared (the
// refresh token is retained) and the original 401 response is returned.
// Ordinary HTTP error statuses are returned to the caller, never raised.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = b
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	creds, ok := c.store.Credentials()
	if !ok || creds.RefreshToken == "" {
		return resp, nil
	}
	if err := c.refresh(ctx, creds.RefreshToken); err != nil {
		c.log.Warn("token refresh failed", zap.String("path", path), zap.Error(err))
		if err := c.store.ClearAccessToken(); err != nil {
			c.log.Warn("clearing access token failed", zap.Error(err))
		}
		return resp, nil
	}

	c.log.Debug("retrying after token refresh", zap.String("path", path))
	return c.send(ctx, method, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*apiResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// Omit the header entirely when there is no access token.
	if creds, ok := c.store.Credentials(); ok && creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	return &apiResponse{Status: resp.StatusCode, Body: b}, nil
}

// refresh trades the refresh token for a new access token. It deliberately
// bypasses Do so a 401 here can never trigger another refresh.
func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("refresh rejected: HTTP %d", resp.StatusCode)
	}
	var payload struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return fmt.Errorf("refresh response: %w", err)
	}
	if payload.Token == "" {
		return errors.New("refresh response missing token")
	}
	return c.store.UpdateTokens(payload.Token, payload.RefreshToken)
}

type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return Credentials{}, err
	}
	if !resp.ok() {
		return Credentials{}, resp.asError()
	}
	var payload authResponse
	if err := resp.decode(&payload); err != nil {
		return Credentials{}, fmt.Errorf("login response: %w", err)
	}
	if payload.Token == "" {
		return Credentials{}, errors.New("login response missing token")
	}
	return Credentials{Token: payload.Token, RefreshToken: payload.RefreshToken, User: payload.User}, nil
}

func (c *Client) Signup(ctx context.Context, firstName, lastName, email, password string) (Credentials, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     email,
		"password":  password,
	})
	if err != nil {
		return Credentials{}, err
	}
	if !resp.ok() {
		return Credentials{}, resp.asError()
	}
	var payload authResponse
	if err := resp.decode(&payload); err != nil {
		return Credentials{}, fmt.Errorf("signup response: %w", err)
	}
	if payload.Token == "" {
		return Credentials{}, errors.New("signup response missing token")
	}
	return Credentials{Token: payload.Token, RefreshToken: payload.RefreshToken, User: payload.User}, nil
}

// Logout invalidates the refresh token server-side. Best-effort: the response
// is ignored beyond its status.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError()
	}
	return nil
}

// RemoteSession is the backend's view of a session: metadata only, no
// messages. Message history is fetched separately.
type RemoteSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) ListSessions(ctx context.Context) ([]RemoteSession, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/history", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.asError()
	}
	var payload struct {
		Sessions []RemoteSession `json:"sessions"`
	}
	if err := resp.decode(&payload); err != nil {
		return nil, fmt.Errorf("history response: %w", err)
	}
	return payload.Sessions, nil
}

// CreateSession creates a remote session and returns its id. The backend
// answers either {session:{id,...}} or a bare {id,...}.
func (c *Client) CreateSession(ctx context.Context, title string) (string, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/history", map[string]string{"title": title})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", resp.asError()
	}
	var payload struct {
		Session *struct {
			ID string `json:"id"`
		} `json:"session"`
		ID string `json:"id"`
	}
	if err := resp.decode(&payload); err != nil {
		return "", fmt.Errorf("create session response: %w", err)
	}
	id := payload.ID
	if payload.Session != nil && payload.Session.ID != "" {
		id = payload.Session.ID
	}
	if id == "" {
		return "", ErrNoRemoteID
	}
	return id, nil
}

func (c *Client) RenameSession(ctx context.Context, remoteID, title string) error {
	resp, err := c.Do(ctx, http.MethodPatch, "/history/"+url.PathEscape(remoteID), map[string]string{"title": title})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError()
	}
	return nil
}

func (c *Client) DeleteSession(ctx context.Context, remoteID string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/history/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError()
	}
	return nil
}

type remoteMessage struct {
	ID            string       `json:"id"`
	Role          string       `json:"role"`
	Content       string       `json:"content"`
	LegalResponse *LegalAnswer `json:"legalResponse,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ListMessages fetches a session's full message history in server order,
// with roles normalized onto the client's role set.
func (c *Client) ListMessages(ctx context.Context, remoteID string) ([]Message, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/history/"+url.PathEscape(remoteID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.asError()
	}
	var payload struct {
		Messages []remoteMessage `json:"messages"`
	}
	if err := resp.decode(&payload); err != nil {
		return nil, fmt.Errorf("messages response: %w", err)
	}
	msgs := make([]Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		msgs = append(msgs, Message{
			ID:        m.ID,
			Role:      NormalizeRole(m.Role),
			Content:   m.Content,
			Answer:    m.LegalResponse,
			Timestamp: m.CreatedAt,
		})
	}
	return msgs, nil
}

func (c *Client) AppendMessage(ctx context.Context, remoteID string, msg Message) error {
	payload := map[string]any{
		"role":    msg.Role,
		"content": msg.Content,
	}
	if msg.Answer != nil {
		payload["legalResponse"] = msg.Answer
		if msg.Answer.TraceID != "" {
			payload["traceId"] = msg.Answer.TraceID
		}
	}
	resp, err := c.Do(ctx, http.MethodPost, "/history/"+url.PathEscape(remoteID)+"/messages", payload)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError()
	}
	return nil
}

// Ask submits a question against a remote session and returns the structured
// answer. The raw response shape varies by backend version; see answer.go.
func (c *Client) Ask(ctx context.Context, query, topic, sessionID string) (*LegalAnswer, error) {
	payload := map[string]string{
		"query":     query,
		"sessionId": sessionID,
	}
	if topic != "" {
		payload["topic"] = topic
	}
	resp, err := c.Do(ctx, http.MethodPost, "/ask", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.asError()
	}
	return answerFromRaw(query, resp.Body), nil
}

func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	resp, err := c.Do(ctx, http.MethodPost, "/feedback", fb)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError()
	}
	return nil
}
