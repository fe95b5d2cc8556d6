package service

import (
	"context"
	"sync"

	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/repository"
	"github.com/keyport/keyport/internal/stamp"
)

type fakeCustody struct {
	mu sync.Mutex

	createResult *custody.CreateSubOrganizationResult
	createErr    error
	createOrgID  string
	createParams *custody.CreateSubOrganizationParams

	whoami    *custody.Whoami
	whoamiErr error
	whoamiOrg string

	forwarded  *custody.Whoami
	forwardErr error

	wallets        []custody.Wallet
	walletsErr     error
	accounts       map[string][]custody.WalletAccount
	accountsErr    error
	accountLookups int
}

func (f *fakeCustody) CreateSubOrganization(_ context.Context, orgID string, params custody.CreateSubOrganizationParams) (*custody.CreateSubOrganizationResult, error) {
	f.createOrgID = orgID
	f.createParams = &params
	return f.createResult, f.createErr
}

func (f *fakeCustody) GetWhoami(_ context.Context, orgID string) (*custody.Whoami, error) {
	f.whoamiOrg = orgID
	return f.whoami, f.whoamiErr
}

func (f *fakeCustody) ForwardSignedRequest(_ context.Context, _ stamp.SignedRequest) (*custody.Whoami, error) {
	return f.forwarded, f.forwardErr
}

func (f *fakeCustody) GetWallets(_ context.Context, _ string) ([]custody.Wallet, error) {
	return f.wallets, f.walletsErr
}

func (f *fakeCustody) GetWalletAccounts(_ context.Context, _, walletID string) ([]custody.WalletAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountLookups++
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts[walletID], nil
}

type fakeUsers struct {
	users          map[string]*model.User
	authenticators []*model.Authenticator
	upsertErr      error
	lookupErr      error
	authErr        error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) UpsertUser(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) CreateAuthenticator(_ context.Context, a *model.Authenticator) error {
	if f.authErr != nil {
		return f.authErr
	}
	f.authenticators = append(f.authenticators, a)
	return nil
}

type fakeAccountCache struct {
	entries map[string][]string
}

func (f *fakeAccountCache) GetAccounts(_ context.Context, orgID string) ([]string, error) {
	return f.entries[orgID], nil
}

func (f *fakeAccountCache) SetAccounts(_ context.Context, orgID string, addresses []string) error {
	f.entries[orgID] = addresses
	return nil
}
