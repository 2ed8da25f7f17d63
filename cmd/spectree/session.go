package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spectree/spectree/internal/cache"
	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/logging"
	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/store"
	"github.com/spectree/spectree/internal/strapi"
	"github.com/spectree/spectree/internal/telemetry"
	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

var errNoApp = errors.New("no app selected")

const noAppHint = "pass --app <documentId> or run 'spectree config set app <documentId>' (see 'spectree apps')"

// Tree sources reported by session.source.
const (
	sourceCMS   = "cms"
	sourceCache = "cache"
)

// session is the per-command wiring: settings, CMS client, cache, store and
// reorder coordinator for one app.
type session struct {
	settings config.Settings
	appID    string
	client   *strapi.Client // nil when offline
	cache    cache.Cache
	store    *store.Store
	coord    *reorder.Coordinator
	source   string

	dirty       atomic.Bool
	unsubscribe func()
}

// newClient builds a CMS client from settings, or nil when offline.
func newClient(s config.Settings) *strapi.Client {
	if offline {
		return nil
	}
	c := strapi.NewClient(s.CMSURL, s.CMSToken)
	if s.CMSTimeout > 0 {
		c.HTTPClient.Timeout = s.CMSTimeout
	}
	c.Log = logging.Component(logger, "strapi")
	return c
}

// cacheDir is the nearest .spectree directory, or ./.spectree.
func cacheDir() (string, error) {
	if dir, err := config.FindWorkspaceDir(); err == nil {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, config.WorkspaceDirName), nil
}

func openCache(ctx context.Context, s config.Settings) (cache.Cache, error) {
	if s.CacheDSN != "" {
		return cache.OpenSQL(ctx, s.CacheDSN)
	}
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}

// openSession loads the selected app's tree, from the CMS when online (and
// refreshes the cache), otherwise from the cache. When the CMS cannot be
// reached a cached tree is used with a warning.
func openSession(ctx context.Context) (*session, error) {
	s := config.Load()
	if s.App == "" {
		return nil, errNoApp
	}
	c, err := openCache(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	sess := &session{
		settings: s,
		appID:    s.App,
		client:   newClient(s),
		cache:    c,
	}

	t, err := sess.load(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	sess.store = store.New(t)
	sess.unsubscribe = sess.store.Subscribe(func(*types.Tree, tree.Action) {
		sess.dirty.Store(true)
	})
	sess.coord = sess.newCoordinator()
	return sess, nil
}

func (s *session) load(ctx context.Context) (*types.Tree, error) {
	if s.client == nil {
		t, err := s.cache.Load(ctx, s.appID)
		if errors.Is(err, cache.ErrMiss) {
			return nil, fmt.Errorf("no cached tree for app %s; run 'spectree pull' while online: %w", s.appID, err)
		}
		s.source = sourceCache
		return t, err
	}

	t, err := s.client.GetTree(ctx, s.appID)
	if err == nil {
		s.source = sourceCMS
		if err := s.cache.Save(ctx, t); err != nil {
			WarnError("failed to update cache: %v", err)
		}
		return t, nil
	}

	var apiErr *strapi.APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return nil, err
	}
	cached, cacheErr := s.cache.Load(ctx, s.appID)
	if cacheErr != nil {
		return nil, err
	}
	WarnError("CMS unavailable (%v); using cached tree", err)
	s.source = sourceCache
	return cached, nil
}

func (s *session) newCoordinator() *reorder.Coordinator {
	opts := []reorder.Option{
		reorder.WithPersistToAPI(s.settings.PersistToAPI && s.client != nil),
		reorder.WithNotifier(ui.NewToast(os.Stderr)),
		reorder.WithLogger(logging.Component(logger, "reorder")),
	}
	var persister reorder.Persister
	if s.client != nil {
		persister = telemetry.WrapPersister(s.client)
		if s.settings.Reconcile {
			opts = append(opts, reorder.WithRefetcher(strapi.Refetcher{Client: s.client, AppDocumentID: s.appID}))
		}
	}
	return reorder.New(s.store, persister, opts...)
}

// snapshot is the current tree.
func (s *session) snapshot() *types.Tree {
	return s.store.Snapshot()
}

// online reports whether writes reach the CMS.
func (s *session) online() bool {
	return s.client != nil && s.settings.PersistToAPI
}

// close stops the coordinator and writes the tree back to the cache when it
// changed.
func (s *session) close(ctx context.Context) {
	s.coord.Close()
	s.unsubscribe()
	if s.dirty.Load() {
		if err := s.cache.Save(ctx, s.snapshot()); err != nil {
			WarnError("failed to update cache: %v", err)
		}
	}
	if err := s.cache.Close(); err != nil {
		logger.Debug().Err(err).Msg("cache close")
	}
}

// mustOpenSession opens a session or exits with a hint.
func mustOpenSession(ctx context.Context) *session {
	sess, err := openSession(ctx)
	if errors.Is(err, errNoApp) {
		FatalErrorWithHint(err.Error(), noAppHint)
	}
	if err != nil {
		FatalError("%v", err)
	}
	return sess
}
