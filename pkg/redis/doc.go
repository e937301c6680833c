// Package redis opens go-redis clients from an env-loaded [Config].
//
// Connect validates the URL scheme (redis:// or rediss://), applies pool and
// timeout settings, then pings with retries. Healthcheck and Shutdown return
// closures for pkg/health and the server's shutdown hooks.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	stats := cache.NewRedis[tracking.Stats](client, cache.WithPrefix("stats"))
package redis
