package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/spectree/spectree/internal/types"
)

const schema = `CREATE TABLE IF NOT EXISTS tree_snapshots (
	app_id     VARCHAR(191) NOT NULL PRIMARY KEY,
	body       LONGTEXT     NOT NULL,
	updated_at DATETIME(6)  NOT NULL
)`

const retryMaxElapsed = 15 * time.Second

// SQLCache stores snapshots in a MySQL-protocol server (Dolt sql-server or
// MySQL).
type SQLCache struct {
	db *sql.DB
}

// OpenSQL connects with a go-sql-driver DSN, e.g.
// "root@tcp(127.0.0.1:3306)/spectree", and creates the table if needed.
func OpenSQL(ctx context.Context, dsn string) (*SQLCache, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid cache dsn: %w", err)
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)

	c := &SQLCache{db: db}
	if err := c.withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, schema)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return c, nil
}

// Load implements Cache.
func (c *SQLCache) Load(ctx context.Context, appID string) (*types.Tree, error) {
	var body string
	err := c.withRetry(ctx, func() error {
		return c.db.QueryRowContext(ctx, `SELECT body FROM tree_snapshots WHERE app_id = ?`, appID).Scan(&body)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", appID, ErrMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var t types.Tree
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("corrupt snapshot for %s: %w", appID, err)
	}
	t.Normalize()
	return &t, nil
}

// Save implements Cache.
func (c *SQLCache) Save(ctx context.Context, t *types.Tree) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	return c.withRetry(ctx, func() error {
		_, err := c.db.ExecContext(ctx,
			`INSERT INTO tree_snapshots (app_id, body, updated_at) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)`,
			Key(t), string(body), time.Now().UTC())
		return err
	})
}

// Close implements Cache.
func (c *SQLCache) Close() error {
	return c.db.Close()
}

// withRetry retries transient connection errors with exponential backoff.
func (c *SQLCache) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// isRetryableError reports whether err looks like a transient connection
// problem rather than a query error.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"driver: bad connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
