package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/howto/internal/storage"
	"github.com/FranksOps/howto/internal/storage/jsonbackend"
	"github.com/FranksOps/howto/internal/storage/postgres"
	"github.com/FranksOps/howto/internal/storage/sqlite"
)

// openStore picks a backend from the scheme of dsn. An empty dsn means no
// history is kept and returns a nil Backend.
func openStore(ctx context.Context, dsn string) (storage.Backend, error) {
	switch {
	case dsn == "":
		return nil, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.New(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "json:"):
		return jsonbackend.New(strings.TrimPrefix(dsn, "json:"))
	default:
		return nil, fmt.Errorf("unsupported store %q: want sqlite:, json: or postgres://", dsn)
	}
}
