package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const inFlight = "-"

var ErrInFlight = errors.New("idempotency: request with this key is in progress")

// Idempotency remembers which order an Idempotency-Key produced.
type Idempotency struct{ RDB *redis.Client }

func idemKey(userID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, userID, key)
}

// Begin claims key for a new request. If a previous request already finished
// it returns that order id; if one is still running it returns ErrInFlight.
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (string, error) {
	k := idemKey(userID, key)
	ok, err := i.RDB.SetNX(ctx, k, inFlight, TTLInFlight).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; treat as a fresh claim.
		return i.Begin(ctx, userID, key)
	}
	if err != nil {
		return "", err
	}
	if v == inFlight {
		return "", ErrInFlight
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.RDB.Set(ctx, idemKey(userID, key), orderID, TTLIdempotency).Err()
}

// Abort releases a claim so the client can retry with the same key.
func (i *Idempotency) Abort(ctx context.Context, userID, key string) error {
	return i.RDB.Del(ctx, idemKey(userID, key)).Err()
}
