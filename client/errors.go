package client

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)
