package checkout

import (
	"sort"
	"sync"
)

// Session bundles a shopper's orchestrator with the notifications it raised.
type Session struct {
	*Orchestrator
	Inbox *Inbox
}

// Registry keeps one checkout per shopper session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	gateway Gateway
	orders  OrderService
	shared  Notifier
	opts    []Option
}

// NewRegistry builds a registry. shared receives every notification of every session
// in addition to the session's own inbox; it may be nil.
func NewRegistry(gateway Gateway, orders OrderService, shared Notifier, opts ...Option) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		gateway:  gateway,
		orders:   orders,
		shared:   shared,
		opts:     opts,
	}
}

// Get returns the checkout of sessionID, creating it over c on first use.
func (r *Registry) Get(sessionID string, c CartSource) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s
	}

	inbox := &Inbox{}
	var notifier Notifier = inbox
	if r.shared != nil {
		notifier = Notifiers{inbox, r.shared}
	}

	opts := append(append([]Option{}, r.opts...), WithNotifier(notifier))
	s := &Session{
		Orchestrator: New(c, r.gateway, r.orders, opts...),
		Inbox:        inbox,
	}
	r.sessions[sessionID] = s
	return s
}

// Lookup returns the checkout of sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Active reports whether sessionID has a checkout in progress or awaiting reconciliation.
func (r *Registry) Active(sessionID string) bool {
	s, ok := r.Lookup(sessionID)
	if !ok {
		return false
	}
	state := s.State()
	return state != StateIdle && state != StateCompleted
}

// Forget drops idle checkouts whose session is no longer kept. It returns how many
// were removed.
func (r *Registry) Forget(keep func(sessionID string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		state := s.State()
		if state != StateIdle && state != StateCompleted {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Reconciliation is a paid checkout whose order is not recorded yet.
type Reconciliation struct {
	SessionID string `json:"session_id"`
	Reference string `json:"reference"`
	Retryable bool   `json:"retryable"`
}

// Reconciliations lists checkouts stuck in OrderSubmissionFailed, ordered by session id.
// Retryable is false when no order payload could be built, leaving Resolve as the only way out.
func (r *Registry) Reconciliations() []Reconciliation {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Reconciliation
	for id, s := range r.sessions {
		if s.State() != StateOrderSubmissionFailed {
			continue
		}
		out = append(out, Reconciliation{
			SessionID: id,
			Reference: s.Reference(),
			Retryable: s.Payload() != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of tracked checkouts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
