package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectree/spectree/internal/cache"
	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/testutil/treefixture"
	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// offlineWorkspace prepares a temp workspace whose file cache holds the
// fixture tree, selects its app and turns on --offline.
func offlineWorkspace(t *testing.T) *cache.FileCache {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.Mkdir(filepath.Join(dir, config.WorkspaceDirName), 0o750))

	fc, err := cache.NewFileCache(filepath.Join(dir, config.WorkspaceDirName))
	require.NoError(t, err)
	require.NoError(t, fc.Save(t.Context(), treefixture.New()))

	require.NoError(t, config.Initialize(""))
	config.Set(config.KeyApp, "doc-app-1")

	offline = true
	t.Cleanup(func() { offline = false })
	return fc
}

func TestOpenSessionNoApp(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, config.Initialize(""))

	_, err := openSession(t.Context())
	assert.True(t, errors.Is(err, errNoApp), "got %v", err)
}

func TestOpenSessionOfflineCacheMiss(t *testing.T) {
	offlineWorkspace(t)
	config.Set(config.KeyApp, "doc-unknown")

	_, err := openSession(t.Context())
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestOfflineReorderIsCached(t *testing.T) {
	fc := offlineWorkspace(t)
	ctx := t.Context()

	sess, err := openSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sourceCache, sess.source)
	assert.Nil(t, sess.client)
	assert.False(t, sess.online())

	p, err := reorderPayload(sess.snapshot(), types.TypeEpic, "epic-2", 0)
	require.NoError(t, err)

	var succeeded bool
	sess.coord.HandleReorder(ctx, p, reorder.OnSuccess(func() { succeeded = true }))
	require.True(t, succeeded)
	sess.close(ctx)

	cached, err := fc.Load(ctx, "doc-app-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"epic-2", "epic-1"}, cached.App.EpicIDs)
}

func TestOfflineMoveIsCached(t *testing.T) {
	fc := offlineWorkspace(t)
	ctx := t.Context()

	sess, err := openSession(ctx)
	require.NoError(t, err)

	require.True(t, sess.coord.ValidateMove(types.TypeFeature, "feature-1", "epic-2").Valid)
	p, err := movePayload(sess.snapshot(), types.TypeFeature, "feature-1", "epic-2", appendIndex)
	require.NoError(t, err)
	sess.coord.HandleReorder(ctx, p)
	require.NoError(t, sess.coord.State().Err)
	sess.close(ctx)

	cached, err := fc.Load(ctx, "doc-app-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature-2"}, cached.Epics["epic-1"].FeatureIDs)
	assert.Equal(t, []string{"feature-3", "feature-1"}, cached.Epics["epic-2"].FeatureIDs)
	assert.Equal(t, "epic-2", cached.Features["feature-1"].ParentEpicID)
}

func TestUnchangedSessionLeavesCache(t *testing.T) {
	fc := offlineWorkspace(t)
	ctx := t.Context()
	before, err := os.Stat(fc.Path("doc-app-1"))
	require.NoError(t, err)

	sess, err := openSession(ctx)
	require.NoError(t, err)
	sess.close(ctx)

	after, err := os.Stat(fc.Path("doc-app-1"))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestAddItemsOffline(t *testing.T) {
	fc := offlineWorkspace(t)
	ctx := t.Context()

	sess, err := openSession(ctx)
	require.NoError(t, err)

	action, err := newAddAction(types.TypeTask, "story-1", " Write docs ", "", types.PriorityMedium)
	require.NoError(t, err)
	added, err := sess.addItems(ctx, []tree.Action{action})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "Write docs", added[0].Title)
	assert.Equal(t, "story-1", added[0].ParentID)
	assert.Empty(t, added[0].DocumentID, "offline adds stay local")
	sess.close(ctx)

	cached, err := fc.Load(ctx, "doc-app-1")
	require.NoError(t, err)
	ids := cached.UserStories["story-1"].TaskIDs
	require.Len(t, ids, 3)
	assert.Equal(t, added[0].ID, ids[2])
	assert.Equal(t, 2, cached.Tasks[ids[2]].Position)
}

func TestNewAddAction(t *testing.T) {
	a, err := newAddAction(types.TypeEpic, "", "Search", "", types.PriorityHigh)
	require.NoError(t, err)
	itemType, id, parent := addedRef(a)
	assert.Equal(t, types.TypeEpic, itemType)
	assert.NotEmpty(t, id)
	assert.Empty(t, parent)
	assert.Equal(t, types.PriorityHigh, a.Epic.Priority)

	_, err = newAddAction(types.TypeFeature, "epic-1", "x", "", "urgent")
	assert.Error(t, err)
	_, err = newAddAction("bogus", "", "x", "", types.PriorityLow)
	assert.ErrorIs(t, err, types.ErrInvalidItemType)
}

func TestAttributesOf(t *testing.T) {
	tr := treefixture.New()
	attrs := attributesOf(tr, types.TypeTask, "task-2")
	assert.Equal(t, "UI button", attrs["title"])
	assert.Equal(t, "done", attrs["status"])
	assert.Nil(t, attributesOf(tr, "bogus", "x"))
}
