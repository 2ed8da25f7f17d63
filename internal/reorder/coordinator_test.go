package reorder

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectree/spectree/internal/store"
	"github.com/spectree/spectree/internal/testutil/treefixture"
	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

type fakePersister struct {
	mu      sync.Mutex
	calls   []PositionUpdate
	err     error
	panicV  any
	block   chan struct{} // when set, waits for close or ctx.Done
	sawDone bool
}

func (f *fakePersister) UpdatePosition(ctx context.Context, u PositionUpdate) error {
	f.mu.Lock()
	f.calls = append(f.calls, u)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			f.mu.Lock()
			f.sawDone = true
			f.mu.Unlock()
			return ctx.Err()
		}
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.err
}

func (f *fakePersister) Calls() []PositionUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PositionUpdate(nil), f.calls...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	seen []Notification
}

func (f *fakeNotifier) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, n)
}

type countingStore struct {
	*store.Store
	dispatches int
}

func (s *countingStore) DispatchFunc(build func(*types.Tree) (tree.Action, error)) (*types.Tree, tree.Action, error) {
	next, action, err := s.Store.DispatchFunc(build)
	if err == nil && action != nil {
		s.dispatches++
	}
	return next, action, err
}

// interleavingStore runs before once, just ahead of the next state change, to
// stand in for a competing call that lands first.
type interleavingStore struct {
	*store.Store
	before func()
}

func (s *interleavingStore) DispatchFunc(build func(*types.Tree) (tree.Action, error)) (*types.Tree, tree.Action, error) {
	if fn := s.before; fn != nil {
		s.before = nil
		fn()
	}
	return s.Store.DispatchFunc(build)
}

// withThirdEpic returns the standard fixture plus an empty epic-3.
func withThirdEpic(t *testing.T) *types.Tree {
	t.Helper()
	tr, err := tree.Apply(treefixture.New(), tree.Add{Epic: &types.Epic{Base: types.Base{ID: "epic-3", DocumentID: "doc-epic-3", Title: "Search"}}})
	require.NoError(t, err)
	return tr
}

type fakeRefetcher struct {
	tree  *types.Tree
	err   error
	calls int
}

func (f *fakeRefetcher) Refetch(context.Context) (*types.Tree, error) {
	f.calls++
	return f.tree, f.err
}

func newCountingStore(t *types.Tree) *countingStore {
	return &countingStore{Store: store.New(t)}
}

func TestNoopDoesNothing(t *testing.T) {
	st := newCountingStore(treefixture.New())
	p := &fakePersister{}
	c := New(st, p)

	successes := 0
	c.HandleReorder(context.Background(), Payload{
		ItemID: "feature-1", ItemType: types.TypeFeature,
		SourceIndex: 0, DestinationIndex: 0,
		SourceParentID: "epic-1", DestinationParentID: "epic-1",
	}, OnSuccess(func() { successes++ }))

	assert.Equal(t, 0, st.dispatches)
	assert.Equal(t, 0, successes)
	assert.Empty(t, p.Calls())
	assert.False(t, c.State().InProgress)
}

func TestReorderEpicWithoutPersistence(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{}
	c := New(st, p, WithPersistToAPI(false))

	successes := 0
	c.HandleReorder(context.Background(), Payload{
		ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1,
	}, OnSuccess(func() { successes++ }))

	assert.Equal(t, 1, successes)
	assert.Empty(t, p.Calls(), "no remote call when persistence is disabled")
	assert.False(t, c.State().InProgress)
	assert.NoError(t, c.State().Err)
	assert.Equal(t, []string{"epic-2", "epic-1"}, st.Snapshot().App.EpicIDs)
}

func TestSameParentReorderPersists(t *testing.T) {
	st := newCountingStore(treefixture.New())
	p := &fakePersister{}
	c := New(st, p)

	c.HandleReorder(context.Background(), Payload{
		ItemID: "task-1", ItemType: types.TypeTask, SourceIndex: 0, DestinationIndex: 1,
		SourceParentID: "story-1", DestinationParentID: "story-1",
	})

	tasks := st.Snapshot().UserStories["story-1"].TaskIDs
	assert.Len(t, tasks, 2, "sibling list length unchanged")
	assert.Equal(t, "task-1", tasks[1], "item lands at destination index")

	calls := p.Calls()
	require.Len(t, calls, 1)
	// story-1 has no durable id, so the local id is used
	assert.Equal(t, PositionUpdate{ItemType: types.TypeTask, DocumentID: "doc-task-1", Position: 1, ParentDocumentID: "story-1"}, calls[0])
}

func TestMoveFeatureAcrossEpics(t *testing.T) {
	st := newCountingStore(treefixture.New())
	p := &fakePersister{}
	c := New(st, p)

	var successes, failures int
	c.HandleReorder(context.Background(), Payload{
		ItemID: "feature-1", ItemType: types.TypeFeature, SourceIndex: 0, DestinationIndex: 0,
		SourceParentID: "epic-1", DestinationParentID: "epic-2",
	}, OnSuccess(func() { successes++ }), OnError(func(error) { failures++ }))

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "doc-feature-1", calls[0].DocumentID)
	assert.Equal(t, 0, calls[0].Position)
	assert.Equal(t, "doc-epic-2", calls[0].ParentDocumentID)
	assert.True(t, calls[0].Reparent)

	snap := st.Snapshot()
	assert.NotContains(t, snap.Epics["epic-1"].FeatureIDs, "feature-1")
	assert.Contains(t, snap.Epics["epic-2"].FeatureIDs, "feature-1")
	assert.Equal(t, "epic-2", snap.Features["feature-1"].ParentEpicID)

	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, failures)
	assert.NoError(t, c.State().Err)
}

func TestPersistenceErrorKeepsOptimisticUpdate(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{err: errors.New("API Error")}
	n := &fakeNotifier{}
	c := New(st, p, WithNotifier(n))

	var gotErrs []error
	successes := 0
	c.HandleReorder(context.Background(), Payload{
		ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1,
	}, OnError(func(err error) { gotErrs = append(gotErrs, err) }), OnSuccess(func() { successes++ }))

	state := c.State()
	require.Error(t, state.Err)
	assert.Equal(t, "API Error", state.Err.Error())
	assert.False(t, state.InProgress)
	require.Len(t, gotErrs, 1)
	assert.Equal(t, 0, successes)

	require.Len(t, n.seen, 1)
	assert.Equal(t, NotifyTitle, n.seen[0].Title)
	assert.Equal(t, VariantDestructive, n.seen[0].Variant)

	// no rollback
	assert.Equal(t, []string{"epic-2", "epic-1"}, st.Snapshot().App.EpicIDs)
}

func TestNonErrorPanicGetsFallbackMessage(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{panicV: "boom"}
	c := New(st, p)

	var got error
	assert.NotPanics(t, func() {
		c.HandleReorder(context.Background(), Payload{
			ItemID: "epic-2", ItemType: types.TypeEpic, SourceIndex: 1, DestinationIndex: 0,
		}, OnError(func(err error) { got = err }))
	})

	require.Error(t, c.State().Err)
	assert.Equal(t, "Failed to reorder items", c.State().Err.Error())
	assert.ErrorIs(t, got, ErrReorderFailed)
	assert.False(t, c.State().InProgress)
}

func TestErrorPanicKeepsError(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{panicV: errors.New("network down")}
	c := New(st, p)

	c.HandleReorder(context.Background(), Payload{ItemID: "epic-2", ItemType: types.TypeEpic, SourceIndex: 1, DestinationIndex: 0})

	require.Error(t, c.State().Err)
	assert.Equal(t, "network down", c.State().Err.Error())
}

func TestMissingItemMakesNoRemoteCall(t *testing.T) {
	st := newCountingStore(treefixture.New())
	p := &fakePersister{}
	c := New(st, p)

	failures := 0
	assert.NotPanics(t, func() {
		c.HandleReorder(context.Background(), Payload{
			ItemID: "ghost", ItemType: types.TypeFeature, SourceIndex: 0, DestinationIndex: 1,
			SourceParentID: "epic-1", DestinationParentID: "epic-1",
		}, OnError(func(error) { failures++ }))
	})

	assert.Empty(t, p.Calls())
	assert.Equal(t, 0, st.dispatches)
	assert.Equal(t, 1, failures)
	assert.ErrorIs(t, c.State().Err, types.ErrNotFound)
	assert.False(t, c.State().InProgress)
}

func TestSuccessClearsPreviousError(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{err: errors.New("API Error")}
	c := New(st, p)

	c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1})
	require.Error(t, c.State().Err)

	p.err = nil
	c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 1, DestinationIndex: 0})
	assert.NoError(t, c.State().Err)
}

func TestInProgressDuringPersistence(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{block: make(chan struct{})}
	c := New(st, p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1})
	}()

	require.Eventually(t, func() bool { return len(p.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.State().InProgress)
	// local update is visible before the remote call settles
	assert.Equal(t, []string{"epic-2", "epic-1"}, st.Snapshot().App.EpicIDs)

	close(p.block)
	<-done
	assert.False(t, c.State().InProgress)
}

func TestCloseCancelsAndIgnoresResult(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{block: make(chan struct{})}
	c := New(st, p)

	var successes, failures int
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1},
			OnSuccess(func() { successes++ }), OnError(func(error) { failures++ }))
	}()

	require.Eventually(t, func() bool { return len(p.Calls()) == 1 }, time.Second, time.Millisecond)
	c.Close()
	<-done

	p.mu.Lock()
	sawDone := p.sawDone
	p.mu.Unlock()
	assert.True(t, sawDone, "remote call should observe cancellation")
	assert.Equal(t, 0, successes)
	assert.Equal(t, 0, failures)
	assert.NoError(t, c.State().Err)
	assert.False(t, c.State().InProgress)

	// calls after Close are ignored entirely
	c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 1, DestinationIndex: 0})
	assert.Equal(t, 1, st.dispatches)
}

func TestReconcileOnFailure(t *testing.T) {
	st := newCountingStore(treefixture.TwoEpics())
	p := &fakePersister{err: errors.New("API Error")}
	fresh := treefixture.TwoEpics()
	r := &fakeRefetcher{tree: fresh}
	c := New(st, p, WithRefetcher(r))

	c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1})

	assert.Equal(t, 1, r.calls)
	assert.Same(t, fresh, st.Snapshot(), "store should hold the refetched tree")
	assert.Equal(t, []string{"epic-1", "epic-2"}, st.Snapshot().App.EpicIDs)
	assert.Error(t, c.State().Err, "the failure is still reported")
}

func TestValidateMoveAndParents(t *testing.T) {
	c := New(store.New(treefixture.New()), nil, WithPersistToAPI(false))

	v := c.ValidateMove(types.TypeFeature, "feature-1", "epic-1")
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Reason)

	parents := c.GetPotentialParents(types.TypeFeature, "epic-1")
	require.Len(t, parents, 2)
	assert.True(t, parents[0].IsCurrent)
	assert.Equal(t, "Accounts", parents[1].Path)
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	st := store.New(treefixture.New())
	p := &fakePersister{}
	c := New(st, p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := 0, 1
			if i%2 == 1 {
				from, to = 1, 0
			}
			c.HandleReorder(context.Background(), Payload{
				ItemID: "task-1", ItemType: types.TypeTask, SourceIndex: from, DestinationIndex: to,
				SourceParentID: "story-1", DestinationParentID: "story-1",
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, p.Calls(), 10)
	assert.False(t, c.State().InProgress)
	assert.NoError(t, st.Snapshot().Validate())
}

func TestConcurrentIdenticalReordersLandOnDestination(t *testing.T) {
	st := store.New(treefixture.New())
	c := New(st, &fakePersister{})

	var successes, failures atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.HandleReorder(context.Background(), Payload{
				ItemID: "task-1", ItemType: types.TypeTask, SourceIndex: 0, DestinationIndex: 1,
				SourceParentID: "story-1", DestinationParentID: "story-1",
			}, OnSuccess(func() { successes.Add(1) }), OnError(func(error) { failures.Add(1) }))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successes.Load())
	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, []string{"task-2", "task-1"}, st.Snapshot().UserStories["story-1"].TaskIDs)
}

func TestReorderAfterCompetingReorder(t *testing.T) {
	st := &interleavingStore{Store: store.New(treefixture.New())}
	c := New(st, &fakePersister{})
	payload := Payload{
		ItemID: "task-1", ItemType: types.TypeTask, SourceIndex: 0, DestinationIndex: 1,
		SourceParentID: "story-1", DestinationParentID: "story-1",
	}
	st.before = func() { c.HandleReorder(context.Background(), payload) }

	succeeded := false
	c.HandleReorder(context.Background(), payload, OnSuccess(func() { succeeded = true }))

	assert.True(t, succeeded)
	assert.NoError(t, c.State().Err)
	assert.Equal(t, []string{"task-2", "task-1"}, st.Snapshot().UserStories["story-1"].TaskIDs,
		"task-1 ends at the destination, task-2 is not moved")
}

func TestMoveAfterCompetingMoveFails(t *testing.T) {
	st := &interleavingStore{Store: store.New(withThirdEpic(t))}
	p := &fakePersister{}
	c := New(st, p)
	st.before = func() {
		c.HandleReorder(context.Background(), Payload{
			ItemID: "feature-1", ItemType: types.TypeFeature, SourceIndex: 0, DestinationIndex: 0,
			SourceParentID: "epic-1", DestinationParentID: "epic-2",
		})
	}

	var gotErr error
	succeeded := false
	c.HandleReorder(context.Background(), Payload{
		ItemID: "feature-1", ItemType: types.TypeFeature, SourceIndex: 0, DestinationIndex: 0,
		SourceParentID: "epic-1", DestinationParentID: "epic-3",
	}, OnSuccess(func() { succeeded = true }), OnError(func(err error) { gotErr = err }))

	assert.False(t, succeeded)
	assert.ErrorIs(t, gotErr, types.ErrInconsistent)
	assert.ErrorIs(t, c.State().Err, types.ErrInconsistent)
	require.Len(t, p.Calls(), 1, "only the competing move is persisted")

	snap := st.Snapshot()
	require.NoError(t, snap.Validate())
	assert.Equal(t, "epic-2", snap.Features["feature-1"].ParentEpicID)
	assert.Equal(t, []string{"feature-1", "feature-3"}, snap.Epics["epic-2"].FeatureIDs)
	assert.Empty(t, snap.Epics["epic-3"].FeatureIDs)
}

func TestRacingMovesKeepOneParent(t *testing.T) {
	st := store.New(withThirdEpic(t))
	c := New(st, &fakePersister{})

	var successes, failures atomic.Int32
	var wg sync.WaitGroup
	for _, dest := range []string{"epic-2", "epic-3"} {
		wg.Add(1)
		go func(dest string) {
			defer wg.Done()
			c.HandleReorder(context.Background(), Payload{
				ItemID: "feature-1", ItemType: types.TypeFeature, SourceIndex: 0, DestinationIndex: 0,
				SourceParentID: "epic-1", DestinationParentID: dest,
			}, OnSuccess(func() { successes.Add(1) }), OnError(func(error) { failures.Add(1) }))
		}(dest)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), failures.Load())

	snap := st.Snapshot()
	require.NoError(t, snap.Validate())
	listed := 0
	for _, id := range []string{"epic-1", "epic-2", "epic-3"} {
		if slices.Contains(snap.Epics[id].FeatureIDs, "feature-1") {
			listed++
		}
	}
	assert.Equal(t, 1, listed, "feature-1 must be listed under exactly one epic")
}

func TestPanickingSuccessCallbackIsNotAFailure(t *testing.T) {
	st := store.New(treefixture.TwoEpics())
	n := &fakeNotifier{}
	c := New(st, &fakePersister{}, WithNotifier(n))

	failures := 0
	assert.NotPanics(t, func() {
		c.HandleReorder(context.Background(), Payload{ItemID: "epic-1", ItemType: types.TypeEpic, SourceIndex: 0, DestinationIndex: 1},
			OnSuccess(func() { panic("caller bug") }), OnError(func(error) { failures++ }))
	})

	assert.Equal(t, 0, failures)
	assert.NoError(t, c.State().Err)
	assert.Empty(t, n.seen)
	assert.False(t, c.State().InProgress)
}
