package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"metalwatch/internal/storage"
)

// Migrate applies the schema files under database.migrations_path.
func (a *App) Migrate(ctx context.Context, w io.Writer) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured")
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := storage.Migrate(ctx, pool, a.Config.Database.MigrationsPath)
	for _, name := range applied {
		fmt.Fprintf(w, "applied %s\n", name)
	}
	if err != nil {
		return err
	}
	a.Logger.Info().Int("files", len(applied)).Str("path", a.Config.Database.MigrationsPath).Msg("schema up to date")
	return nil
}
