package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/spectree/spectree/internal/testutil/treefixture"
	"github.com/spectree/spectree/internal/types"
)

// exerciseCache runs the behaviour every Cache must share.
func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Load(ctx, "doc-app-1")
	require.ErrorIs(t, err, ErrMiss)

	src := treefixture.New()
	require.NoError(t, c.Save(ctx, src))

	got, err := c.Load(ctx, "doc-app-1")
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.Equal(t, src.App.EpicIDs, got.App.EpicIDs)
	assert.Equal(t, "UI button", got.Tasks["task-2"].Title)
	assert.True(t, got.Tasks["task-2"].CreatedAt.Equal(treefixture.Created))

	// overwrite
	src.Epics["epic-1"].Title = "Checkout v2"
	require.NoError(t, c.Save(ctx, src))
	got, err = c.Load(ctx, "doc-app-1")
	require.NoError(t, err)
	assert.Equal(t, "Checkout v2", got.Epics["epic-1"].Title)
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	exerciseCache(t, c)
}

func TestFileCacheSanitizesKey(t *testing.T) {
	c := &FileCache{Dir: "/tmp/x"}
	assert.Equal(t, "/tmp/x/tree-.._etc_passwd.json", c.Path("../etc/passwd"))
}

func TestFileCacheCorrupt(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path("bad"), []byte("{not json"), 0o600))

	_, err = c.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
}

func TestKey(t *testing.T) {
	tr := types.NewTree(types.App{Base: types.Base{ID: "local"}})
	assert.Equal(t, "local", Key(tr))
	tr.App.DocumentID = "doc"
	assert.Equal(t, "doc", Key(tr))
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{mysql.ErrInvalidConn, true},
		{fmt.Errorf("wrap: %w", mysql.ErrInvalidConn), true},
		{errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"), true},
		{errors.New("Error 1064: You have an error in your SQL syntax"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

// TestSQLCacheDolt runs against a real Dolt sql-server in a container.
// Set SPECTREE_TEST_DOLT=1 to enable; it needs Docker.
func TestSQLCacheDolt(t *testing.T) {
	if testing.Short() || os.Getenv("SPECTREE_TEST_DOLT") == "" {
		t.Skip("set SPECTREE_TEST_DOLT=1 to run the Dolt integration test")
	}
	ctx := context.Background()

	ctr, err := dolt.Run(ctx, "dolthub/dolt-sql-server:1.43.0",
		dolt.WithDatabase("spectree"),
		dolt.WithUsername("spectree"),
		dolt.WithPassword("spectree"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := OpenSQL(ctx, dsn)
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}
