// Package pg wires PostgreSQL into the service using pgx/v5 and goose/v3.
//
// Config is populated from PG_* environment variables. Connect opens a
// *pgxpool.Pool with retries, Migrate applies the embedded goose migrations
// and Healthcheck plugs the pool into the readiness endpoint.
//
// Stores across the module accept the DB interface instead of a concrete pool
// so they work equally with a pool or inside a transaction:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//		return err
//	}
//	store := entitlement.NewPostgresStore(pool)
//
// Error helpers such as IsDuplicateKeyError classify *pgconn.PgError values
// by SQLSTATE.
package pg
