package client

import "context"

// Notification is a user-facing failure message produced by the request layer.
type Notification struct {
	Message    string
	Method     string
	Path       string
	StatusCode int // 0 when no response arrived
}

// Notifier surfaces failures to the user. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// TokenSource returns the persisted bearer token, or "" when there is none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// UnauthorizedHook is called after a request is answered with 401.
type UnauthorizedHook func(method, path string)
