package dbclient

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"appupdate-go/configs/config"
	"appupdate-go/internal/cstmerr"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func pascalToCamelCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	words := make([]string, 0)
	currentWord := strings.Builder{}
	for _, r := range s {
		if unicode.IsUpper(r) && currentWord.Len() > 0 {
			words = append(words, currentWord.String())
			currentWord.Reset()
		}
		currentWord.WriteRune(r)
	}
	if currentWord.Len() > 0 {
		words = append(words, currentWord.String())
	}

	words[0] = strings.ToLower(words[0])
	return strings.Join(words, "")
}

// CustomNamingStrategy keeps gorm's table naming but writes columns in camelCase.
type CustomNamingStrategy struct {
	schema.NamingStrategy
}

func (c CustomNamingStrategy) ColumnName(table, column string) string {
	return pascalToCamelCase(column)
}

// GORMAdapter implements the DBClient interface using GORM over PostgreSQL.
type GORMAdapter struct {
	db     *gorm.DB
	config *config.DatabaseConfig
	models []any
}

func NewGORMAdapter(cfg *config.DatabaseConfig, models ...any) *GORMAdapter {
	return &GORMAdapter{
		config: cfg,
		models: models,
	}
}

func (ga *GORMAdapter) dsn(withDB bool) string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d sslmode=%s TimeZone=UTC",
		ga.config.Host, ga.config.User, ga.config.Password, ga.config.Port, ga.config.SSLMode)
	if withDB {
		dsn += " dbname=" + ga.config.DBName
	}
	return dsn
}

// Connect opens the database, creating it first when missing, and migrates the adapter's models.
func (ga *GORMAdapter) Connect(ctx context.Context) error {
	if ga.db != nil {
		if err := ga.Ping(ctx); err == nil {
			return nil
		}
	}

	gormLogger := logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false,
	})

	if bootstrap, err := gorm.Open(postgres.Open(ga.dsn(false)), &gorm.Config{Logger: gormLogger}); err == nil {
		// Fails harmlessly when the database already exists.
		bootstrap.WithContext(ctx).Exec("CREATE DATABASE " + ga.config.DBName)
		if sqlDB, err := bootstrap.DB(); err == nil {
			sqlDB.Close()
		}
	}

	db, err := gorm.Open(postgres.Open(ga.dsn(true)),
		&gorm.Config{Logger: gormLogger,
			NowFunc: func() time.Time { return time.Now().UTC() },
			NamingStrategy: CustomNamingStrategy{
				schema.NamingStrategy{
					SingularTable: true,
				}}})
	if err != nil {
		return cstmerr.NewDBConnectionError("gorm.Open failed", err)
	}
	ga.db = db

	if len(ga.models) > 0 {
		if err := ga.db.WithContext(ctx).AutoMigrate(ga.models...); err != nil {
			return cstmerr.NewDBConnectionError("auto-migration failed", err)
		}
	}

	if err := ga.Ping(ctx); err != nil {
		return cstmerr.NewDBConnectionError("failed to ping database after GORM connect", err)
	}
	log.Infof("Connected to PostgreSQL %s:%d/%s", ga.config.Host, ga.config.Port, ga.config.DBName)
	return nil
}

func (ga *GORMAdapter) Close() error {
	if ga.db != nil {
		sqlDB, _ := ga.db.DB()
		if sqlDB != nil {
			return sqlDB.Close()
		}
	}
	return nil
}

func (ga *GORMAdapter) Ping(ctx context.Context) error {
	if ga.db == nil {
		return cstmerr.NewDBError("database not connected (GORM)", nil)
	}
	sqlDB, _ := ga.db.DB()
	if sqlDB == nil {
		return cstmerr.NewDBError("underlying sql.DB not available for ping (GORM)", nil)
	}
	return sqlDB.PingContext(ctx)
}

// withTimeout bounds ctx by d; a zero d leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (ga *GORMAdapter) Create(ctx context.Context, model any) error {
	if ga.db == nil {
		return cstmerr.NewDBError("database not connected (GORM)", nil)
	}
	ctx, cancel := withTimeout(ctx, ga.config.WriteTimeout)
	defer cancel()
	result := ga.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return cstmerr.NewDBQueryError("GORM Create failed", result.Error)
	}
	return nil
}

func (ga *GORMAdapter) Find(ctx context.Context, collection any, opts *QueryOptions, conditions ...any) error {
	if ga.db == nil {
		return cstmerr.NewDBError("database not connected (GORM)", nil)
	}
	ctx, cancel := withTimeout(ctx, ga.config.ReadTimeout)
	defer cancel()
	db := ga.db.WithContext(ctx)
	if opts != nil {
		if opts.Order != "" {
			db = db.Order(opts.Order)
		}
		if opts.Limit > 0 {
			db = db.Limit(opts.Limit)
		}
	}
	// An empty result is not an error; the slice stays empty.
	if result := db.Find(collection, conditions...); result.Error != nil {
		return cstmerr.NewDBQueryError("GORM Find failed", result.Error)
	}
	return nil
}
