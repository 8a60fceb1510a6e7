package jobs

import (
	"context"

	"go.uber.org/zap"
)

// Sweeper — кэш, из которого можно выбросить просроченные записи.
type Sweeper interface {
	Sweep() int
}

// CacheSweep чистит просроченные таблицы из кэша процесса.
func CacheSweep(c Sweeper, log *zap.Logger) Job {
	return func(context.Context) error {
		if n := c.Sweep(); n > 0 {
			log.Debug("cache swept", zap.Int("expired", n))
		}
		return nil
	}
}

// StoreProbe — периодический ping хранилища; задержка попадает в метрики самого ping.
func StoreProbe(ping func(context.Context) error) Job {
	return func(ctx context.Context) error {
		return ping(ctx)
	}
}
