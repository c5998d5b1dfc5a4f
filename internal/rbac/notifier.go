package rbac

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CatalogChannel is the Redis channel carrying catalog revisions.
const CatalogChannel = "rbac:catalog"

// Notifier broadcasts catalog revisions between instances.
type Notifier interface {
	Publish(ctx context.Context, version int64) error
	Subscribe(ctx context.Context) (<-chan int64, func() error)
}

// RedisNotifier implements Notifier with Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier constructs RedisNotifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Publish announces a new catalog revision.
func (n *RedisNotifier) Publish(ctx context.Context, version int64) error {
	return n.client.Publish(ctx, CatalogChannel, strconv.FormatInt(version, 10)).Err()
}

// Subscribe streams announced revisions until the returned close func is called.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan int64, func() error) {
	sub := n.client.Subscribe(ctx, CatalogChannel)
	out := make(chan int64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			version, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				continue
			}
			select {
			case out <- version:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close
}
