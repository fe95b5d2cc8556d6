package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyport/keyport/internal/model"
)

// DefaultCeremonyTTL bounds how long a browser has to answer a challenge.
const DefaultCeremonyTTL = 5 * time.Minute

// ErrCeremonyNotFound is returned when a ceremony is unknown, expired or already used.
var ErrCeremonyNotFound = errors.New("ceremony not found")

// PutCeremony stores a pending ceremony until it is taken or ttl elapses.
func (c *Cache) PutCeremony(ctx context.Context, ceremony *model.Ceremony, ttl time.Duration) error {
	if ceremony == nil || ceremony.ID == "" {
		return errors.New("ceremony id is required")
	}
	if ttl <= 0 {
		ttl = DefaultCeremonyTTL
	}

	data, err := json.Marshal(ceremony)
	if err != nil {
		return fmt.Errorf("marshal ceremony: %w", err)
	}

	// SetNX so a colliding id never overwrites another browser's challenge.
	ok, err := c.client.SetNX(ctx, c.key("ceremony", ceremony.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("ceremony %s already exists", ceremony.ID)
	}
	return nil
}

// TakeCeremony loads and deletes a ceremony in one step, so each challenge
// can be answered at most once.
func (c *Cache) TakeCeremony(ctx context.Context, id string) (*model.Ceremony, error) {
	data, err := c.client.GetDel(ctx, c.key("ceremony", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCeremonyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}

	var ceremony model.Ceremony
	if err := json.Unmarshal(data, &ceremony); err != nil {
		// Corrupted entry - treat as missing
		return nil, ErrCeremonyNotFound
	}
	if ceremony.Expired(c.now()) {
		return nil, ErrCeremonyNotFound
	}
	return &ceremony, nil
}
