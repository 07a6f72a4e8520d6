package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"tenderplan/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Prefix         string
	Projects       string
	Sections       string
	Tasks          string
	TaskImages     string
	TaskContents   string
	Sources        string
	ProjectSources string

	// NotifyChannel is the LISTEN/NOTIFY channel row triggers publish on
	NotifyChannel string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Prefix:         prefix,
		Projects:       fmt.Sprintf("%sprojects", prefix),
		Sections:       fmt.Sprintf("%ssections", prefix),
		Tasks:          fmt.Sprintf("%stasks", prefix),
		TaskImages:     fmt.Sprintf("%stask_images", prefix),
		TaskContents:   fmt.Sprintf("%stask_contents", prefix),
		Sources:        fmt.Sprintf("%ssources", prefix),
		ProjectSources: fmt.Sprintf("%sproject_sources", prefix),
		NotifyChannel:  fmt.Sprintf("%soutline_changes", prefix),
	}
}

// Unprefixed strips the environment prefix from a table name.
func (t *TableNames) Unprefixed(table string) string {
	if t.Prefix != "" && len(table) > len(t.Prefix) && table[:len(t.Prefix)] == t.Prefix {
		return table[len(t.Prefix):]
	}
	return table
}

// CreateConnectionPool creates a pgx pool.
//
// Supabase's transaction pooler (port 6543) does not support prepared
// statements, so that port switches to QueryExecModeCacheDescribe unless the
// connection string sets default_query_exec_mode explicitly. Prefixed table
// names are interpolated before the SQL reaches the server, so each
// environment caches its own statement descriptions.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	// Configure pool size
	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction carried by ctx, or pool.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	return repositories.Conn(ctx, pool)
}
