package custody

import (
	"context"
	"fmt"
)

// GetWhoami identifies the client's own key within organizationID.
func (c *Client) GetWhoami(ctx context.Context, organizationID string) (*Whoami, error) {
	var out Whoami
	if err := c.post(ctx, PathWhoami, organizationRequest{OrganizationID: organizationID}, &out); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &out, nil
}

// GetWallets lists the wallets of an organization.
func (c *Client) GetWallets(ctx context.Context, organizationID string) ([]Wallet, error) {
	var out walletsResponse
	if err := c.post(ctx, PathListWallets, organizationRequest{OrganizationID: organizationID}, &out); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return out.Wallets, nil
}

// GetWalletAccounts lists the accounts derived within a wallet.
func (c *Client) GetWalletAccounts(ctx context.Context, organizationID, walletID string) ([]WalletAccount, error) {
	req := walletAccountsRequest{OrganizationID: organizationID, WalletID: walletID}
	var out walletAccountsResponse
	if err := c.post(ctx, PathListWalletAccounts, req, &out); err != nil {
		return nil, fmt.Errorf("list wallet accounts: %w", err)
	}
	return out.Accounts, nil
}
