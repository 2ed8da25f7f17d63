package reorder

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// ErrReorderFailed is the fallback error for failures that carry no error
// value of their own (a panic with a non-error value).
var ErrReorderFailed = errors.New("Failed to reorder items") //nolint:staticcheck // user-facing text

const (
	// NotifyTitle and NotifyDescription are shown when persistence fails.
	NotifyTitle       = "Reorder Failed"
	NotifyDescription = "Failed to save the new order. Please try again."
)

// Variant styles a user notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing toast.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier shows notifications to the user. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// Persister writes a new position (and parent, for moves) to the backend.
type Persister interface {
	UpdatePosition(ctx context.Context, update PositionUpdate) error
}

// Refetcher reloads the authoritative tree from the backend.
type Refetcher interface {
	Refetch(ctx context.Context) (*types.Tree, error)
}

// StateStore is the subset of store.Store the coordinator needs. DispatchFunc
// must run build and apply its action without letting another change in
// between.
type StateStore interface {
	Snapshot() *types.Tree
	DispatchFunc(build func(current *types.Tree) (tree.Action, error)) (*types.Tree, tree.Action, error)
	Replace(t *types.Tree)
}

// State is the observable status of the coordinator.
type State struct {
	InProgress bool
	Err        error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPersistToAPI toggles the remote position write (default on).
func WithPersistToAPI(enabled bool) Option {
	return func(c *Coordinator) { c.persistToAPI = enabled }
}

// WithNotifier sets where failure toasts go.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithRefetcher enables reconcile-on-failure: when the remote write fails the
// coordinator reloads the tree and replaces local state with it.
func WithRefetcher(r Refetcher) Option {
	return func(c *Coordinator) { c.refetcher = r }
}

// CallOption configures a single HandleReorder call.
type CallOption func(*callbacks)

type callbacks struct {
	onSuccess func()
	onError   func(error)
}

// OnSuccess runs once after the local update and the persistence attempt
// both finish without error.
func OnSuccess(fn func()) CallOption {
	return func(cb *callbacks) { cb.onSuccess = fn }
}

// OnError runs once with the normalized error when the call fails.
func OnError(fn func(error)) CallOption {
	return func(cb *callbacks) { cb.onError = fn }
}

// Coordinator applies drag-and-drop results to a StateStore and persists them.
//
// Calls are not queued: two concurrent HandleReorder calls each dispatch and
// persist independently and the last remote write wins. InProgress stays true
// while any call is in flight.
type Coordinator struct {
	state     StateStore
	persister Persister
	notifier  Notifier
	refetcher Refetcher
	log       zerolog.Logger

	persistToAPI bool

	lifetime context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex // Protects inflight and err
	inflight int
	err      error
}

// New creates a coordinator. persister may be nil when persistence is
// disabled with WithPersistToAPI(false).
func New(state StateStore, persister Persister, opts ...Option) *Coordinator {
	lifetime, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:        state,
		persister:    persister,
		log:          zerolog.Nop(),
		persistToAPI: true,
		lifetime:     lifetime,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current in-progress flag and last error.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{InProgress: c.inflight > 0, Err: c.err}
}

// Close tears the coordinator down. In-flight remote calls are cancelled and
// their results ignored: no state writes and no callbacks happen after Close.
func (c *Coordinator) Close() {
	c.cancel()
}

func (c *Coordinator) closed() bool {
	return c.lifetime.Err() != nil
}

// HandleReorder applies p locally and then persists it. It never panics and
// never returns an error; outcomes are reported through State, the notifier
// and the call options. Exactly one of OnSuccess and OnError runs, unless the
// coordinator is closed first.
//
// The plan is computed against the tree as it is when the local update is
// applied, so concurrent calls never act on each other's stale indexes.
func (c *Coordinator) HandleReorder(ctx context.Context, p Payload, opts ...CallOption) {
	if p.IsNoop() {
		return
	}
	if c.closed() {
		c.log.Debug().Str("item_id", p.ItemID).Msg("reorder ignored: coordinator closed")
		return
	}

	var cb callbacks
	for _, opt := range opts {
		opt(&cb)
	}

	c.begin()
	defer c.end()

	remote, err := c.attempt(ctx, p)
	switch {
	case errors.Is(err, errIgnored):
		return
	case err != nil:
		c.fail(p, err, &cb)
		if remote {
			c.reconcile()
		}
	case cb.onSuccess != nil:
		c.invoke(p, cb.onSuccess)
	}
}

// errIgnored marks a result that arrived after Close.
var errIgnored = errors.New("reorder result ignored")

// attempt runs the local update and the remote write. remote reports whether
// err came from the persister. Panics are turned into errors.
func (c *Coordinator) attempt(ctx context.Context, p Payload) (remote bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			remote, err = false, normalizeError(r)
		}
	}()

	var plan Plan
	_, _, err = c.state.DispatchFunc(func(current *types.Tree) (tree.Action, error) {
		var planErr error
		plan, planErr = NewPlan(current, p)
		return plan.Action, planErr
	})
	if err != nil {
		return false, err
	}
	if plan.Action != nil {
		c.log.Debug().
			Str("item_id", p.ItemID).
			Str("item_type", string(p.ItemType)).
			Str("action", plan.Action.Describe()).
			Msg("reorder applied locally")
	}

	if !c.persistToAPI || plan.Effect == nil || c.persister == nil {
		return false, nil
	}
	callCtx, cancel := c.callContext(ctx)
	err = c.persister.UpdatePosition(callCtx, *plan.Effect)
	cancel()
	if c.closed() {
		c.log.Debug().Str("item_id", p.ItemID).Msg("reorder result ignored: coordinator closed")
		return false, errIgnored
	}
	return err != nil, err
}

// invoke runs a caller-supplied hook. A panic in the hook is logged and
// otherwise dropped; it does not change the reported outcome.
func (c *Coordinator) invoke(p Payload, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Interface("panic", r).
				Str("item_id", p.ItemID).
				Msg("reorder callback panicked")
		}
	}()
	fn()
}

// ValidateMove checks a candidate destination against the current snapshot.
func (c *Coordinator) ValidateMove(itemType types.ItemType, itemID, destParentID string) tree.MoveValidation {
	return tree.ValidateMove(c.state.Snapshot(), itemType, itemID, destParentID)
}

// GetPotentialParents lists every possible destination for an item of itemType.
func (c *Coordinator) GetPotentialParents(itemType types.ItemType, currentParentID string) []tree.ParentOption {
	return tree.PotentialParents(c.state.Snapshot(), itemType, currentParentID)
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	c.err = nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
}

// callContext derives a context that is also cancelled when the coordinator
// is closed.
func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (c *Coordinator) fail(p Payload, err error, cb *callbacks) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	c.log.Error().
		Err(err).
		Str("item_id", p.ItemID).
		Str("item_type", string(p.ItemType)).
		Int("source_index", p.SourceIndex).
		Int("destination_index", p.DestinationIndex).
		Str("source_parent_id", p.SourceParentID).
		Str("destination_parent_id", p.DestinationParentID).
		Msg("reorder failed")

	if c.notifier != nil {
		c.invoke(p, func() {
			c.notifier.Notify(Notification{
				Title:       NotifyTitle,
				Description: NotifyDescription,
				Variant:     VariantDestructive,
			})
		})
	}
	if cb.onError != nil {
		c.invoke(p, func() { cb.onError(err) })
	}
}

// reconcile reloads the tree after a failed remote write when a refetcher is
// configured. Errors are logged; local state then stays as it is.
func (c *Coordinator) reconcile() {
	if c.refetcher == nil {
		return
	}
	fresh, err := c.refetcher.Refetch(c.lifetime)
	if err != nil {
		c.log.Warn().Err(err).Msg("reconcile after failed reorder: refetch failed")
		return
	}
	if c.closed() {
		return
	}
	c.state.Replace(fresh)
	c.log.Info().Msg("reconciled tree with backend after failed reorder")
}

// normalizeError turns a recovered panic value into an error. Error values are
// kept as they are; anything else becomes ErrReorderFailed.
func normalizeError(v any) error {
	if err, ok := v.(error); ok && err != nil {
		return err
	}
	return ErrReorderFailed
}
