package lock

import (
	"context"
	"time"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
)

// Locker serializes work on a key, e.g. creation of one logical table.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
	Close() error
}

// Catalog records single table owners shared by every router of a cluster. Lockers
// backed by shared storage implement it; a router without one keeps owners in process.
type Catalog interface {
	// Claim records ds as the owner of table unless an owner is recorded already.
	// It returns the recorded owner and whether this call created it.
	Claim(ctx context.Context, table, ds string) (owner string, claimed bool, err error)
	Owner(ctx context.Context, table string) (string, bool, error)
	Owners(ctx context.Context) (map[string]string, error)
	Release(ctx context.Context, table string) error
}

// NewFromConfig builds the locker named by cfg.Type.
func NewFromConfig(cfg config.LockCfg) (Locker, error) {
	switch cfg.Type {
	case "", config.LockLocal:
		return NewLocalLocker(), nil
	case config.LockEtcd:
		ttl := cfg.TTL
		if ttl <= 0 {
			ttl = 10
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		return NewEtcdLocker(cfg.Endpoints, cfg.Prefix, ttl, timeout)
	default:
		return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "unknown lock type \"%s\"", cfg.Type)
	}
}
