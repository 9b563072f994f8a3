package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Client manages a read-mostly SQL connection pool over the transaction store.
type Client struct {
	db     *sql.DB
	driver string
}

// NewClient opens and pings a pool for the configured driver.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Driver:          DriverClickHouse,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		PingTimeout:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	dsn, err := buildDSN(*cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// one connection so an in-memory database outlives each query
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", cfg.Driver, err)
	}

	return &Client{db: db, driver: cfg.Driver}, nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, driver string) *Client {
	return &Client{db: db, driver: driver}
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Driver returns the driver name the pool was opened with.
func (c *Client) Driver() string {
	return c.driver
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func buildDSN(cfg ClientConfig) (string, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("path is required for sqlite3")
		}
		if cfg.Path == ":memory:" {
			return ":memory:", nil
		}
		return "file:" + cfg.Path + "?_busy_timeout=5000", nil
	case DriverClickHouse:
		if cfg.Host == "" {
			return "", fmt.Errorf("host is required")
		}
	default:
		return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	scheme := "clickhouse://"
	if cfg.UseHTTP {
		scheme = "clickhouse+http://"
	}
	dsn := fmt.Sprintf("%s%s:%s@%s:%d/%s",
		scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var params []string
	if cfg.DialTimeout > 0 {
		params = append(params, fmt.Sprintf("dial_timeout=%v", cfg.DialTimeout))
	}
	if cfg.ReadTimeout > 0 {
		params = append(params, fmt.Sprintf("read_timeout=%v", cfg.ReadTimeout))
	}
	if cfg.MaxExecTime > 0 {
		params = append(params, fmt.Sprintf("max_execution_time=%d", int(cfg.MaxExecTime.Seconds())))
	}
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn, nil
}
