package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/resilience"
	"github.com/sells-group/clickbait-cli/internal/store"
)

// initStore opens the configured run store and applies its schema. Opening
// and migrating are retried while the database is unreachable or busy.
func initStore(ctx context.Context) (store.Store, error) {
	backoff := resilience.DefaultBackoff()
	if cfg.Store.ConnectAttempts > 0 {
		backoff.Attempts = cfg.Store.ConnectAttempts
	}

	var open func(ctx context.Context) (store.Store, error)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "clickbait.db"
		}
		open = func(context.Context) (store.Store, error) { return store.NewSQLite(dsn) }
	case "postgres":
		open = func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		}
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	st, err := resilience.DoVal(ctx, backoff, "store.open", open)
	if err != nil {
		return nil, err
	}
	if err := resilience.Do(ctx, backoff, "store.migrate", st.Migrate); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
