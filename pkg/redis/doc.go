// Package redis connects the service to Redis with go-redis/v9.
//
// Connect retries until the server answers a PING and Healthcheck exposes
// the connection to the readiness endpoint. The quota package builds its
// Redis ledger on the returned client:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	ledger := quota.NewRedisLedger(client, quota.WithKeyPrefix(cfg.KeyPrefix))
package redis
