// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/metrics"
	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/passkey"
	"github.com/keyport/keyport/internal/repository"
	"github.com/keyport/keyport/internal/stamp"
)

// Sub-organization defaults.
const (
	PasskeyAuthenticatorName = "Passkey"
	DefaultAPIKeyName        = "keyport-demo"
	// EmptyWallet is reported for users whose organization has no accounts.
	EmptyWallet = "0x"

	maxConcurrentAccountLookups = 4
)

// CustodyAPI is the subset of the custody client the auth flows use.
type CustodyAPI interface {
	CreateSubOrganization(ctx context.Context, organizationID string, params custody.CreateSubOrganizationParams) (*custody.CreateSubOrganizationResult, error)
	GetWhoami(ctx context.Context, organizationID string) (*custody.Whoami, error)
	ForwardSignedRequest(ctx context.Context, req stamp.SignedRequest) (*custody.Whoami, error)
	GetWallets(ctx context.Context, organizationID string) ([]custody.Wallet, error)
	GetWalletAccounts(ctx context.Context, organizationID, walletID string) ([]custody.WalletAccount, error)
}

// UserStore persists users and the passkeys they signed up with.
type UserStore interface {
	UpsertUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateAuthenticator(ctx context.Context, a *model.Authenticator) error
}

// AccountCache caches the wallet addresses of an organization.
type AccountCache interface {
	GetAccounts(ctx context.Context, organizationID string) ([]string, error)
	SetAccounts(ctx context.Context, organizationID string, addresses []string) error
}

// AuthConfig holds the parent organization settings.
type AuthConfig struct {
	// OrganizationID is the parent organization sub-organizations are created under.
	OrganizationID string
	// DefaultUserPublicKey registers an API key root user when no passkey is given.
	DefaultUserPublicKey string
}

// AuthService signs users up and in against the custody API.
type AuthService struct {
	custody  CustodyAPI
	users    UserStore
	accounts AccountCache
	cfg      AuthConfig
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewAuthService creates a new AuthService. accounts may be nil.
func NewAuthService(api CustodyAPI, users UserStore, accounts AccountCache, cfg AuthConfig, logger *slog.Logger, recorder metrics.Recorder) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		custody:  api,
		users:    users,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
		metrics:  recorder,
	}
}

// SubOrganizationParams builds the create_sub_organization parameters for email.
// A registration result makes the passkey the root user's authenticator;
// otherwise the configured default API key is registered.
func (s *AuthService) SubOrganizationParams(email string, registration *passkey.RegistrationResult) custody.CreateSubOrganizationParams {
	username := model.UsernameFromEmail(email)

	root := custody.RootUser{
		UserName:       username,
		UserEmail:      email,
		APIKeys:        []custody.APIKeyParams{},
		Authenticators: []custody.AuthenticatorParams{},
	}
	if registration != nil {
		root.Authenticators = append(root.Authenticators, custody.AuthenticatorParams{
			AuthenticatorName: PasskeyAuthenticatorName,
			Challenge:         registration.Challenge,
			Attestation:       registration.Attestation,
		})
	} else {
		root.APIKeys = append(root.APIKeys, custody.APIKeyParams{
			APIKeyName: DefaultAPIKeyName,
			PublicKey:  s.cfg.DefaultUserPublicKey,
		})
	}

	return custody.CreateSubOrganizationParams{
		SubOrganizationName: "Sub Org - " + email,
		RootQuorumThreshold: 1,
		RootUsers:           []custody.RootUser{root},
		Wallet: &custody.WalletParams{
			WalletName: fmt.Sprintf("User %s wallet", username),
			Accounts: []custody.WalletAccountParams{{
				Curve:         custody.CurveSecp256k1,
				PathFormat:    custody.PathFormatBIP32,
				Path:          custody.EthereumDefaultPath,
				AddressFormat: custody.AddressFormatEthereum,
			}},
		},
	}
}

// CreateUserSubOrg creates a sub-organization with one wallet for email.
// Custody failures are logged and reported as a nil result.
func (s *AuthService) CreateUserSubOrg(ctx context.Context, email string, registration *passkey.RegistrationResult) (*custody.CreateSubOrganizationResult, error) {
	params := s.SubOrganizationParams(email, registration)

	result, err := s.custody.CreateSubOrganization(ctx, s.cfg.OrganizationID, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.metrics.IncSubOrgCreated(metrics.StatusFailed)
		s.logger.Error("failed to create sub-organization",
			slog.String("email_hash", auth.QuickHash(email)),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	s.metrics.IncSubOrgCreated(metrics.StatusSuccess)
	return result, nil
}

// SignUp creates the custody account for a new passkey and returns the user.
// A nil user means the sign-up was refused.
func (s *AuthService) SignUp(ctx context.Context, email string, registration *passkey.RegistrationResult) (*model.User, error) {
	if registration == nil {
		s.metrics.IncSignUp(metrics.StatusDenied)
		return nil, nil
	}

	// A custody sub-organization is never created for an email already on record.
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		s.metrics.IncSignUp(metrics.StatusDenied)
		s.logger.Info("sign-up email already registered", slog.String("email_hash", auth.QuickHash(email)))
		return nil, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	result, err := s.CreateUserSubOrg(ctx, email, registration)
	if err != nil {
		return nil, err
	}
	if result == nil || result.SubOrganizationID == "" {
		s.metrics.IncSignUp(metrics.StatusFailed)
		return nil, nil
	}

	whoami, err := s.custody.GetWhoami(ctx, result.SubOrganizationID)
	if err != nil {
		if isRefusal(err) {
			s.metrics.IncSignUp(metrics.StatusFailed)
			s.logger.Error("failed to identify new sub-organization user",
				slog.String("sub_organization_id", result.SubOrganizationID),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return nil, err
	}

	wallet := ""
	if result.Wallet != nil && len(result.Wallet.Addresses) > 0 {
		wallet = result.Wallet.Addresses[0]
	}

	user := &model.User{
		ID:        whoami.UserID,
		Email:     email,
		Username:  model.UsernameFromEmail(email),
		Wallet:    wallet,
		OrgID:     whoami.OrganizationID,
		AvatarURL: "",
	}

	if err := s.users.UpsertUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncSignUp(metrics.StatusDenied)
			s.logger.Warn("sign-up email registered concurrently",
				slog.String("sub_organization_id", result.SubOrganizationID),
				slog.String("email_hash", auth.QuickHash(email)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	authenticator := &model.Authenticator{
		CredentialID: registration.Attestation.CredentialID,
		UserID:       user.ID,
		Name:         PasskeyAuthenticatorName,
		Transports:   registration.Attestation.Transports,
	}
	if err := s.users.CreateAuthenticator(ctx, authenticator); err != nil {
		s.logger.Warn("failed to record authenticator",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.accounts != nil && wallet != "" {
		_ = s.accounts.SetAccounts(ctx, user.OrgID, result.Wallet.Addresses)
	}

	s.metrics.IncSignUp(metrics.StatusSuccess)
	s.logger.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("organization_id", user.OrgID),
	)
	return user, nil
}

// SignIn forwards a passkey-stamped whoami request and returns the user it
// identifies. A nil user means the stamp was not accepted.
func (s *AuthService) SignIn(ctx context.Context, email string, req stamp.SignedRequest) (*model.User, error) {
	whoami, err := s.custody.ForwardSignedRequest(ctx, req)
	if err != nil {
		if custody.IsNotFound(err) {
			s.metrics.IncSignIn(metrics.StatusDenied)
			s.logger.Info("sign-in passkey not recognised", slog.String("email_hash", auth.QuickHash(email)))
			return nil, nil
		}
		if isRefusal(err) {
			s.metrics.IncSignIn(metrics.StatusDenied)
			s.logger.Warn("sign-in request refused", slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	if whoami.Code == custody.CodeNotFound || whoami.OrganizationID == "" {
		s.metrics.IncSignIn(metrics.StatusDenied)
		return nil, nil
	}

	addresses, err := s.WalletAddresses(ctx, whoami.OrganizationID)
	if err != nil {
		if isRefusal(err) {
			s.metrics.IncSignIn(metrics.StatusFailed)
			s.logger.Error("failed to list wallet accounts",
				slog.String("organization_id", whoami.OrganizationID),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return nil, err
	}

	user := &model.User{
		ID:        whoami.UserID,
		Email:     email,
		Username:  whoami.Username,
		Wallet:    firstAddress(addresses),
		OrgID:     whoami.OrganizationID,
		AvatarURL: "",
	}

	// The typed email is not proven by the passkey; prefer the one on record.
	if existing, err := s.users.GetUserByID(ctx, user.ID); err == nil {
		user.Email = existing.Email
		user.AvatarURL = existing.AvatarURL
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.users.UpsertUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncSignIn(metrics.StatusDenied)
			s.logger.Warn("sign-in email belongs to another user", slog.String("user_id", user.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.metrics.IncSignIn(metrics.StatusSuccess)
	return user, nil
}

// WalletAddresses lists every account address of an organization, wallet by
// wallet in the order the custody API returns them.
func (s *AuthService) WalletAddresses(ctx context.Context, organizationID string) ([]string, error) {
	if s.accounts != nil {
		if cached, _ := s.accounts.GetAccounts(ctx, organizationID); cached != nil {
			return cached, nil
		}
	}

	wallets, err := s.custody.GetWallets(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	perWallet := make([][]custody.WalletAccount, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAccountLookups)
	for i, w := range wallets {
		g.Go(func() error {
			accounts, err := s.custody.GetWalletAccounts(gctx, organizationID, w.WalletID)
			if err != nil {
				return err
			}
			perWallet[i] = accounts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	addresses := []string{}
	for _, accounts := range perWallet {
		for _, a := range accounts {
			if a.Address != "" {
				addresses = append(addresses, a.Address)
			}
		}
	}

	if s.accounts != nil {
		_ = s.accounts.SetAccounts(ctx, organizationID, addresses)
	}
	return addresses, nil
}

func firstAddress(addresses []string) string {
	for _, a := range addresses {
		if a != "" {
			return a
		}
	}
	return EmptyWallet
}

// isRefusal reports whether err is the custody API (or the request guard)
// turning a request down, as opposed to a transport or context failure.
func isRefusal(err error) bool {
	var reqErr *custody.RequestError
	var actErr *custody.ActivityError
	return errors.As(err, &reqErr) ||
		errors.As(err, &actErr) ||
		errors.Is(err, custody.ErrForeignURL) ||
		errors.Is(err, stamp.ErrInvalidSignedRequest)
}
