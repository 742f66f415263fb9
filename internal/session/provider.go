// Package session owns the authenticated identity of one client: the current
// user, its role, and the Stored Credential that survives restarts.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/rbac"
)

// State is the lifecycle state of a Provider.
type State uint8

const (
	StateInitializing State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ErrSuperseded is returned by Login and Register when a later transition
// (typically a logout) settled while the request was in flight.
var ErrSuperseded = errors.New("session: transition superseded")

// AuthService is the authentication backend consumed by the Provider.
type AuthService interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.Result, error)
	Register(ctx context.Context, reg auth.Registration) (auth.Result, error)
	CurrentUser(ctx context.Context, token string) (auth.User, error)
	Logout(ctx context.Context, token string) error
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	State   State
	User    *auth.User
	Loading bool
}

// Role returns the role of the current user, RoleNone when anonymous.
func (s Snapshot) Role() rbac.Role {
	if s.State != StateAuthenticated || s.User == nil {
		return rbac.RoleNone
	}
	return s.User.Role
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// Observer is notified after every settled transition.
type Observer func(Snapshot)

// Provider holds the single live session of a client.
type Provider struct {
	service AuthService
	store   TokenStore
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	user       *auth.User
	generation uint64
	pending    int
	observers  []subscription
	nextID     int
}

type subscription struct {
	id int
	fn Observer
}

// NewProvider constructs a Provider in the initializing state.
func NewProvider(service AuthService, store TokenStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		service: service,
		store:   store,
		logger:  logger,
		state:   StateInitializing,
	}
}

// Snapshot returns the current session view.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() Snapshot {
	snap := Snapshot{State: p.state, Loading: p.state == StateInitializing || p.pending > 0}
	if p.user != nil {
		u := *p.user
		snap.User = &u
	}
	return snap
}

// Role is shorthand for Snapshot().Role().
func (p *Provider) Role() rbac.Role {
	return p.Snapshot().Role()
}

// Subscribe registers an observer and returns a function removing it.
func (p *Provider) Subscribe(fn Observer) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers = append(p.observers, subscription{id: id, fn: fn})
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.observers {
			if sub.id == id {
				p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
				return
			}
		}
	}
}

// IsAuthenticated reports whether a Stored Credential exists. It never calls
// the authentication service.
func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	token, err := p.store.Load(ctx)
	return err == nil && token != ""
}

// Init validates the Stored Credential, if any. Failures are absorbed: the
// credential is deleted and the session settles anonymous.
func (p *Provider) Init(ctx context.Context) {
	p.validate(ctx, "init")
}

// Refresh re-runs the startup validation on demand.
func (p *Provider) Refresh(ctx context.Context) {
	p.validate(ctx, "refresh")
}

func (p *Provider) validate(ctx context.Context, op string) {
	token, err := p.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		p.logger.Warn("session load credential", slog.String("op", op), slog.Any("error", err))
	}
	if token == "" {
		gen := p.begin()
		p.settle(gen, StateAnonymous, nil)
		return
	}

	gen := p.begin()
	user, err := p.service.CurrentUser(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			// The caller went away; the credential was never judged.
			p.logger.Debug("session validation abandoned", slog.String("op", op), slog.Any("error", err))
			p.abandon()
			return
		}
		p.logger.Warn("session credential rejected", slog.String("op", op), slog.Any("error", err))
		p.invalidate(ctx, gen)
		return
	}
	p.settle(gen, StateAuthenticated, &user)
}

// Login submits credentials. On failure the error is returned and the session
// is left as it was.
func (p *Provider) Login(ctx context.Context, creds auth.Credentials) error {
	gen := p.begin()
	result, err := p.service.Login(ctx, creds)
	if err != nil {
		p.abandon()
		return err
	}
	return p.establish(ctx, gen, result)
}

// Register creates an account and signs it in.
func (p *Provider) Register(ctx context.Context, reg auth.Registration) error {
	gen := p.begin()
	result, err := p.service.Register(ctx, reg)
	if err != nil {
		p.abandon()
		return err
	}
	return p.establish(ctx, gen, result)
}

// Logout clears the Stored Credential and the in-memory session, then asks the
// service to invalidate the credential. Only local storage errors are returned.
func (p *Provider) Logout(ctx context.Context) error {
	token, loadErr := p.store.Load(ctx)

	p.mu.Lock()
	p.generation++
	p.state = StateAnonymous
	p.user = nil
	storeErr := p.store.Delete(ctx)
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()
	notify(observers, snap)

	if loadErr == nil && token != "" {
		if err := p.service.Logout(ctx, token); err != nil {
			p.logger.Warn("session remote logout", slog.Any("error", err))
		}
	}
	return storeErr
}

func (p *Provider) establish(ctx context.Context, gen uint64, result auth.Result) error {
	p.mu.Lock()
	p.pending--
	if gen != p.generation {
		snap := p.snapshotLocked()
		observers := p.observersLocked()
		p.mu.Unlock()
		notify(observers, snap)
		return ErrSuperseded
	}
	if err := p.store.Save(ctx, result.Token); err != nil {
		snap := p.snapshotLocked()
		observers := p.observersLocked()
		p.mu.Unlock()
		notify(observers, snap)
		return err
	}
	user := result.User
	p.generation++
	p.state = StateAuthenticated
	p.user = &user
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()
	notify(observers, snap)
	return nil
}

// begin opens a transition and returns the generation it was started under.
// Only applied sign-ins and logouts advance the generation, so a transition
// that fails never discards another one still in flight.
func (p *Provider) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending++
	return p.generation
}

// abandon closes a transition that changed nothing.
func (p *Provider) abandon() {
	p.mu.Lock()
	p.pending--
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()
	notify(observers, snap)
}

func (p *Provider) settle(gen uint64, state State, user *auth.User) {
	p.mu.Lock()
	p.pending--
	if gen == p.generation {
		p.state = state
		p.user = user
	}
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()
	notify(observers, snap)
}

func (p *Provider) invalidate(ctx context.Context, gen uint64) {
	p.mu.Lock()
	p.pending--
	if gen == p.generation {
		if err := p.store.Delete(ctx); err != nil {
			p.logger.Warn("session delete credential", slog.Any("error", err))
		}
		p.state = StateAnonymous
		p.user = nil
	}
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()
	notify(observers, snap)
}

func (p *Provider) observersLocked() []Observer {
	out := make([]Observer, 0, len(p.observers))
	for _, sub := range p.observers {
		out = append(out, sub.fn)
	}
	return out
}

func notify(observers []Observer, snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
