package realtime

import (
	"sync"
)

// Session is one live client connection. The router never owns sessions:
// it forwards to them and forgets them, but only their transport closes them.
type Session interface {
	// Send queues payload for delivery. It must not block and returns
	// false if the payload was dropped.
	Send(payload []byte) bool

	// Open reports whether the session can still accept payloads.
	Open() bool
}

// Logger is the logging surface the router needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Router maps an account to its single live session. A later registration
// for the same account replaces the earlier one.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]Session
	logger   Logger
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		sessions: make(map[string]Session),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger. A nil logger disables logging.
func (r *Router) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Register makes s the live session of accountID, replacing any previous one.
func (r *Router) Register(accountID string, s Session) {
	r.mu.Lock()
	_, replaced := r.sessions[accountID]
	r.sessions[accountID] = s
	logger := r.logger
	r.mu.Unlock()

	logger.Info("live session registered", "account_id", accountID, "replaced", replaced)
}

// Unregister removes accountID's session, but only if it is still s.
// A stale session closing after a reconnect leaves the newer one in place.
func (r *Router) Unregister(accountID string, s Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[accountID]
	removed := ok && current == s
	if removed {
		delete(r.sessions, accountID)
	}
	logger := r.logger
	r.mu.Unlock()

	if removed {
		logger.Info("live session unregistered", "account_id", accountID)
	}
	return removed
}

// Forward sends payload to accountID's session if one is registered and
// open. Anything else is dropped silently; live updates are not buffered.
func (r *Router) Forward(accountID string, payload []byte) bool {
	r.mu.RLock()
	s, ok := r.sessions[accountID]
	logger := r.logger
	r.mu.RUnlock()

	if !ok || !s.Open() {
		return false
	}
	if !s.Send(payload) {
		logger.Warn("live session send buffer full, dropping update", "account_id", accountID)
		return false
	}
	return true
}

// Count returns the number of registered sessions.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
