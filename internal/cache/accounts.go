package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AccountsCacheTTL is the time-to-live for cached wallet addresses.
const AccountsCacheTTL = time.Minute

// GetAccounts retrieves the cached wallet addresses of an organization.
// Returns nil if not found (cache miss).
func (c *Cache) GetAccounts(ctx context.Context, organizationID string) ([]string, error) {
	data, err := c.client.Get(ctx, c.key("accounts", organizationID)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var addresses []string
	if err := json.Unmarshal(data, &addresses); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}
	return addresses, nil
}

// SetAccounts caches the wallet addresses of an organization.
func (c *Cache) SetAccounts(ctx context.Context, organizationID string, addresses []string) error {
	data, err := json.Marshal(addresses)
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}
	return c.client.Set(ctx, c.key("accounts", organizationID), data, AccountsCacheTTL).Err()
}
