package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const initTimeout = 30 * time.Second

// FromEnv selects the audit store from the environment. PGSTORE_DSN wins over
// OBJECTSTORE_ENDPOINT; with neither set an in-memory store of historyLimit records is used.
// The returned close func releases backend resources.
func FromEnv(ctx context.Context, lookup func(string) (string, bool), historyLimit int) (Store, func() error, error) {
	get := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}
	noop := func() error { return nil }

	if dsn, ok := get("PGSTORE_DSN", "pgstore_dsn"); ok {
		schema, _ := get("PGSTORE_SCHEMA", "pgstore_schema")
		initCtx, cancel := context.WithTimeout(ctx, initTimeout)
		defer cancel()
		pg, err := NewPostgresStore(initCtx, PostgresStoreConfig{DSN: dsn, Schema: schema})
		if err != nil {
			return nil, noop, err
		}
		if err = pg.EnsureSchema(initCtx); err != nil {
			_ = pg.Close()
			return nil, noop, err
		}
		log.Info("postgres-backed audit store enabled")
		return pg, pg.Close, nil
	}

	if rawEndpoint, ok := get("OBJECTSTORE_ENDPOINT", "objectstore_endpoint"); ok {
		defaultSSL := true
		if v, okSSL := get("OBJECTSTORE_USE_SSL", "objectstore_use_ssl"); okSSL {
			if parsed, err := strconv.ParseBool(v); err == nil {
				defaultSSL = parsed
			}
		}
		endpoint, useSSL, err := ResolveEndpoint(rawEndpoint, defaultSSL)
		if err != nil {
			return nil, noop, err
		}
		access, _ := get("OBJECTSTORE_ACCESS_KEY", "objectstore_access_key")
		secret, _ := get("OBJECTSTORE_SECRET_KEY", "objectstore_secret_key")
		bucket, _ := get("OBJECTSTORE_BUCKET", "objectstore_bucket")
		prefix, _ := get("OBJECTSTORE_PREFIX", "objectstore_prefix")
		obj, err := NewObjectStore(ObjectStoreConfig{
			Endpoint:  endpoint,
			Bucket:    bucket,
			AccessKey: access,
			SecretKey: secret,
			Prefix:    prefix,
			UseSSL:    useSSL,
			PathStyle: true,
		})
		if err != nil {
			return nil, noop, err
		}
		initCtx, cancel := context.WithTimeout(ctx, initTimeout)
		defer cancel()
		if err = obj.EnsureBucket(initCtx); err != nil {
			return nil, noop, err
		}
		log.Infof("object-backed audit store enabled, bucket: %s", bucket)
		return obj, noop, nil
	}

	if historyLimit < 0 {
		return nil, noop, fmt.Errorf("store: invalid history limit %d", historyLimit)
	}
	return NewMemoryStore(historyLimit), noop, nil
}
