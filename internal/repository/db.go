package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"handy/catalog/internal/config"
)

// OpenPostgres opens gorm on top of a pgx pool so the pool settings stay in
// one place.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to open gorm on pgx pool: %w", err)
	}
	return db, pool, nil
}

// OpenSQLite is used for local development and tests.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(log.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// AutoMigrate creates the CMS-shaped schema. Production databases are owned by
// the CMS and never migrated from here.
func AutoMigrate(db *gorm.DB, t Tables) error {
	steps := []struct {
		table string
		model any
	}{
		{t.Posts, &postRow{}},
		{t.PostMeta, &postMetaRow{}},
		{t.Terms, &termRow{}},
		{t.TermTaxonomy, &termTaxonomyRow{}},
		{t.TermRelationships, &termRelationshipRow{}},
		{t.TermMeta, &termMetaRow{}},
	}
	for _, s := range steps {
		if err := db.Table(s.table).AutoMigrate(s.model); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}
