// Package mongo connects the MongoDB backend of the delivery log with
// mongo-driver/v2.
//
// Config is populated from MONGODB_* environment variables. New retries
// until the server answers a ping; NewWithDatabase also selects
// cfg.Database:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
// Healthcheck turns a client into the "mongo" check of /healthz.
package mongo
