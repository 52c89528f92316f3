package lock

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// EtcdLocker takes cluster-wide locks and keeps the single table catalog under
// <prefix>/tables, so routers sharing one etcd agree on table ownership.
type EtcdLocker struct {
	cli     *clientv3.Client
	prefix  string
	ttl     int
	timeout time.Duration
}

var (
	_ Locker  = &EtcdLocker{}
	_ Catalog = &EtcdLocker{}
)

func NewEtcdLocker(endpoints []string, prefix string, ttl int, timeout time.Duration) (*EtcdLocker, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to etcd")
	}

	return &EtcdLocker{
		cli:     cli,
		prefix:  prefix,
		ttl:     ttl,
		timeout: timeout,
	}, nil
}

func unlockMutex(mu *concurrency.Mutex, ctx context.Context) {
	if err := mu.Unlock(ctx); err != nil {
		shlog.Zero.Error().Err(err).Msg("failed to release etcd lock")
	}
}

func closeSession(sess *concurrency.Session) {
	if err := sess.Close(); err != nil {
		shlog.Zero.Error().Err(err).Msg("failed to close etcd session")
	}
}

func (l *EtcdLocker) Lock(ctx context.Context, key string) (func(), error) {
	sess, err := concurrency.NewSession(l.cli, concurrency.WithTTL(l.ttl))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create etcd session")
	}

	mu := concurrency.NewMutex(sess, path.Join(l.prefix, "locks", key))
	if err := mu.Lock(ctx); err != nil {
		closeSession(sess)
		return nil, errors.Wrapf(err, "failed to lock \"%s\"", key)
	}

	shlog.Zero.Debug().Str("key", key).Str("etcd key", mu.Key()).Msg("etcd lock acquired")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		unlockMutex(mu, ctx)
		closeSession(sess)
		shlog.Zero.Debug().Str("key", key).Msg("etcd lock released")
	}, nil
}

func (l *EtcdLocker) tablesPrefix() string {
	return path.Join(l.prefix, "tables") + "/"
}

func (l *EtcdLocker) tableKey(table string) string {
	return l.tablesPrefix() + table
}

func (l *EtcdLocker) Claim(ctx context.Context, table, ds string) (string, bool, error) {
	key := l.tableKey(table)
	resp, err := l.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, ds)).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to claim table \"%s\"", table)
	}
	if resp.Succeeded {
		shlog.Zero.Debug().Str("table", table).Str("data source", ds).Msg("claimed table in etcd")
		return ds, true, nil
	}

	kvs := resp.Responses[0].GetResponseRange().Kvs
	if len(kvs) == 0 {
		return "", false, errors.Errorf("owner of table \"%s\" vanished during claim", table)
	}
	return string(kvs[0].Value), false, nil
}

func (l *EtcdLocker) Owner(ctx context.Context, table string) (string, bool, error) {
	resp, err := l.cli.Get(ctx, l.tableKey(table))
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get owner of table \"%s\"", table)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

func (l *EtcdLocker) Owners(ctx context.Context) (map[string]string, error) {
	prefix := l.tablesPrefix()
	resp, err := l.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list table owners")
	}
	ret := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ret[strings.TrimPrefix(string(kv.Key), prefix)] = string(kv.Value)
	}
	return ret, nil
}

func (l *EtcdLocker) Release(ctx context.Context, table string) error {
	if _, err := l.cli.Delete(ctx, l.tableKey(table)); err != nil {
		return errors.Wrapf(err, "failed to release table \"%s\"", table)
	}
	return nil
}

func (l *EtcdLocker) Close() error {
	return l.cli.Close()
}
