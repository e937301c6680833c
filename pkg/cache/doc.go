// Package cache provides a small generic cache with in-memory and Redis
// backends, plus a singleflight Loader that fills it on a miss.
//
//	stats := cache.NewLoader[tracking.Stats](cache.NewMemory[tracking.Stats](), 30*time.Second)
//	s, err := stats.Load(ctx, key, func(ctx context.Context) (tracking.Stats, error) {
//		return svc.Stats(ctx, editionID)
//	})
package cache
