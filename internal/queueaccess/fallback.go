package queueaccess

import (
	"fmt"

	"spindle/internal/ipc"
	"spindle/internal/store"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to
// opening the store directly with no worker pool running (pool-dependent
// operations like Pause and Resize will error in that mode).
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*store.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open store: no store opener configured")
	}
	s, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open store: %w", err)
	}
	return Session{
		Access: NewDirectAccess(s, nil),
		close:  s.Close,
	}, nil
}
