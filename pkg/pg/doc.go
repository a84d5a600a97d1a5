// Package pg connects the PostgreSQL notification store with pgx/v5 and
// applies its goose migrations, which ship inside the binary.
//
// Config is populated from PG_* environment variables via pkg/config.
// Connect retries until the database answers a ping; Migrate runs the
// migrations of an fs.FS (typically an embed.FS) against the same pool.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//
// Healthcheck turns the pool into the "postgres" check of /healthz.
package pg
