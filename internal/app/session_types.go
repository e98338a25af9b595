package app

import "time"

// DefaultTitle is the placeholder title a session carries until it is renamed
// or auto-titled from its first user message.
const DefaultTitle = "New chat"

// TitleMaxLen caps auto-derived session titles, in runes.
const TitleMaxLen = 40

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// Session is the client-resident record of one conversation. LocalID is
// generated on this client and never changes; RemoteID is set at most once,
// when the server-side counterpart is confirmed to exist, and is never
// rebound to a different remote session.
type Session struct {
	LocalID   string    `json:"id"`
	RemoteID  string    `json:"remote_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

type Message struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"` // user|assistant|error
	Content   string       `json:"content"`
	Answer    *LegalAnswer `json:"answer,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// LegalAnswer is the structured payload returned by the /ask endpoint. The
// client stores and renders it; it never interprets the legal content.
// Field names follow the backend wire format.
type LegalAnswer struct {
	TraceID        string        `json:"traceId,omitempty"`
	Question       string        `json:"question,omitempty"`
	Jurisdiction   string        `json:"jurisdiction,omitempty"`
	ShortAnswer    []string      `json:"short_answer,omitempty"`
	WhatTheLawSays []LawCitation `json:"what_the_law_says,omitempty"`
	Caveats        []string      `json:"caveats,omitempty"`
	Sources        []string      `json:"sources,omitempty"`
	Followups      []string      `json:"followups,omitempty"`
	Confidence     string        `json:"confidence,omitempty"` // high|medium|low
}

type LawCitation struct {
	Act     string `json:"act"`
	Section string `json:"section,omitempty"`
	URL     string `json:"url,omitempty"`
	Quote   string `json:"quote,omitempty"`
}

// Credentials is the token pair issued at login/signup. The access token is
// short-lived and rotated by refresh; the refresh token outlives it.
type Credentials struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

type User struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Feedback is the payload for the best-effort /feedback endpoint.
type Feedback struct {
	TraceID       string   `json:"traceId"`
	Topic         string   `json:"topic,omitempty"`
	Question      string   `json:"question"`
	Helpful       bool     `json:"helpful"`
	Reasons       []string `json:"reasons,omitempty"`
	Comment       string   `json:"comment,omitempty"`
	AnswerSummary string   `json:"answerSummary,omitempty"`
	UIVersion     string   `json:"uiVersion,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
}

// NormalizeRole maps a server-reported role onto the client's role set.
// Anything unrecognized is treated as assistant output.
func NormalizeRole(role string) string {
	switch role {
	case RoleUser, RoleError:
		return role
	default:
		return RoleAssistant
	}
}

// DeriveTitle builds a session title from message content, truncated to
// TitleMaxLen runes. Empty content falls back to the placeholder.
func DeriveTitle(content string) string {
	if content == "" {
		return DefaultTitle
	}
	runes := []rune(content)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen])
	}
	return content
}
