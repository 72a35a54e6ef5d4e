package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ErrClaimNotHeld is returned when releasing a claim owned by someone else.
var ErrClaimNotHeld = errors.New(errors.ErrCodeConflict, "claim not held by this owner")

// Claims marks message ids as in progress so that redelivered Kafka
// messages are processed once across workers.
type Claims struct {
	client *Client
	owner  string
	prefix string
	logger logging.Logger
}

// NewClaims returns a claim set owned by this process.
func NewClaims(client *Client, log logging.Logger) *Claims {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Claims{
		client: client,
		owner:  uuid.NewString(),
		prefix: DefaultPrefix + "claim:",
		logger: log.Named("claims"),
	}
}

// Owner is this process's claim token.
func (c *Claims) Owner() string { return c.owner }

// Claim takes id for ttl. It reports false when another owner holds it.
func (c *Claims) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+id, c.owner, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to claim message")
	}
	if !ok {
		c.logger.Debug("message already claimed", logging.String("id", id))
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Release drops a claim this process holds.
func (c *Claims) Release(ctx context.Context, id string) error {
	if c.client.isClosed() {
		return ErrClientClosed
	}
	n, err := releaseScript.Run(ctx, c.client.rdb, []string{c.prefix + id}, c.owner).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release claim")
	}
	if n == 0 {
		return ErrClaimNotHeld.WithDetail(id)
	}
	return nil
}
