package dbclient

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/cstmerr"
	"context"
	"fmt"
	"time"
)

// QueryOptions are the common modifiers for Find.
type QueryOptions struct {
	Limit int
	Order string // e.g., "createdAt desc"
}

// DBClient defines the interface for ORM-like database operations.
type DBClient interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Create inserts a new record. 'model' is a pointer to the struct to be created.
	Create(ctx context.Context, model any) error

	// Find loads the records matching conditions into collection, a pointer to a slice.
	// conditions can be a struct or a query string plus args.
	Find(ctx context.Context, collection any, opts *QueryOptions, conditions ...any) error
}

// NewDBClient connects the adapter named by dbType and migrates models.
func NewDBClient(dbConfig *config.DatabaseConfig, dbType string, models ...any) (DBClient, error) {
	if dbConfig == nil {
		return nil, cstmerr.NewConfigError("database configuration is nil", nil)
	}

	var adapter DBClient
	switch dbType {
	case "gorm":
		adapter = NewGORMAdapter(dbConfig, models...)
	default:
		return nil, cstmerr.NewDBConnectionError(fmt.Sprintf("failed to find db type %s", dbType), nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}
