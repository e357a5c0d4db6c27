package plugins

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/plugin"
)

const redisOpTimeout = 3 * time.Second

// RedisAddressbook reads recipient contacts from a Redis hash per
// recipient, keyed "<prefix>contacts:<recipientID>". Hash fields are the
// attribute names: email, mobile, account_type, first_name, language,
// telegram.
type RedisAddressbook struct {
	client *redis.Client
	prefix string
}

// NewRedisAddressbook builds the source from settings.
func NewRedisAddressbook(cfg config.RedisSettings) *RedisAddressbook {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tattler:"
	}
	return &RedisAddressbook{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: prefix,
	}
}

func (r *RedisAddressbook) Name() string { return "redis" }

// Setup verifies the server is reachable so a misconfigured source is
// dropped at startup instead of failing every lookup.
func (r *RedisAddressbook) Setup() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrInvalidConfig, "cannot reach redis addressbook")
	}
	return nil
}

func (r *RedisAddressbook) key(recipientID string) string {
	return r.prefix + "contacts:" + recipientID
}

// RecipientExists reports whether a contact hash exists for the id.
func (r *RedisAddressbook) RecipientExists(recipientID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	n, err := r.client.Exists(ctx, r.key(recipientID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrInternal, "redis existence check failed")
	}
	return n > 0, nil
}

// Attributes loads the contact hash. The role parameter is ignored,
// hashes hold one contact set per recipient.
func (r *RedisAddressbook) Attributes(recipientID, _ string) (plugin.Attributes, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	fields, err := r.client.HGetAll(ctx, r.key(recipientID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "redis attribute fetch failed")
	}
	attrs := make(plugin.Attributes, len(fields)+2)
	for k, v := range fields {
		attrs[k] = v
	}
	if mobile, ok := attrs.Get(plugin.AttrMobile); ok {
		if _, set := attrs.Get(plugin.AttrSMS); !set {
			attrs[plugin.AttrSMS] = mobile
		}
		if _, set := attrs.Get(plugin.AttrWhatsapp); !set {
			attrs[plugin.AttrWhatsapp] = mobile
		}
	}
	return attrs, nil
}
