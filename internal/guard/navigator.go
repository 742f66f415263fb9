package guard

import (
	"path"
	"sync"

	"github.com/cursos-vacacionales/panel/internal/session"
)

// maxRedirects bounds redirect chains within one evaluation.
const maxRedirects = 4

// Frame is one screen produced by the Navigator.
type Frame struct {
	Path     string
	Decision Decision
	Snapshot session.Snapshot
}

// Navigator is the continuous guard of a long-lived client. It keeps a
// history stack and re-evaluates the current entry on every navigation and
// every identity change.
type Navigator struct {
	provider *session.Provider
	public   map[string]bool
	emit     func(Frame)

	mu          sync.Mutex
	history     []string
	unsubscribe func()
}

// NewNavigator subscribes to provider. emit receives every frame in order and
// must not call back into the Navigator. Public paths always render.
func NewNavigator(provider *session.Provider, emit func(Frame), public ...string) *Navigator {
	n := &Navigator{
		provider: provider,
		public:   make(map[string]bool, len(public)),
		emit:     emit,
	}
	for _, p := range public {
		n.public[p] = true
	}
	n.unsubscribe = provider.Subscribe(n.onChange)
	return n
}

// Navigate pushes p and evaluates it, returning the frames produced.
func (n *Navigator) Navigate(p string) []Frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, cleanPath(p))
	return n.evaluateLocked(n.provider.Snapshot())
}

// Back pops the current entry and evaluates the previous one. It reports false
// when there is nothing to go back to.
func (n *Navigator) Back() ([]Frame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) < 2 {
		return nil, false
	}
	n.history = n.history[:len(n.history)-1]
	return n.evaluateLocked(n.provider.Snapshot()), true
}

// Current returns the path at the top of the history, empty before the first
// navigation.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return ""
	}
	return n.history[len(n.history)-1]
}

// History returns a copy of the history stack, oldest first.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.history))
	copy(out, n.history)
	return out
}

// Close stops following identity changes.
func (n *Navigator) Close() {
	n.mu.Lock()
	unsubscribe := n.unsubscribe
	n.unsubscribe = nil
	n.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (n *Navigator) onChange(snap session.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return
	}
	n.evaluateLocked(snap)
}

// evaluateLocked evaluates the top of the history. Redirects replace the
// current entry; a denial emits its frame before the redirect is applied.
func (n *Navigator) evaluateLocked(snap session.Snapshot) []Frame {
	var frames []Frame
	for i := 0; ; i++ {
		current := n.history[len(n.history)-1]
		decision := n.decide(snap, current)
		frame := Frame{Path: current, Decision: decision, Snapshot: snap}
		frames = append(frames, frame)
		if n.emit != nil {
			n.emit(frame)
		}
		if decision.Target == "" || decision.Target == current || i >= maxRedirects {
			return frames
		}
		n.history[len(n.history)-1] = decision.Target
	}
}

func (n *Navigator) decide(snap session.Snapshot, p string) Decision {
	if n.public[p] {
		return Decision{Outcome: OutcomeRender}
	}
	return EvaluateSnapshot(snap, p)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
