package custody

import "encoding/json"

// Activity statuses.
const (
	ActivityStatusCreated         = "ACTIVITY_STATUS_CREATED"
	ActivityStatusPending         = "ACTIVITY_STATUS_PENDING"
	ActivityStatusCompleted       = "ACTIVITY_STATUS_COMPLETED"
	ActivityStatusFailed          = "ACTIVITY_STATUS_FAILED"
	ActivityStatusRejected        = "ACTIVITY_STATUS_REJECTED"
	ActivityStatusConsensusNeeded = "ACTIVITY_STATUS_CONSENSUS_NEEDED"
)

// ActivityTypeCreateSubOrganization is the submit type for sub-organization creation.
const ActivityTypeCreateSubOrganization = "ACTIVITY_TYPE_CREATE_SUB_ORGANIZATION_V4"

// Wallet account parameters for Ethereum.
const (
	CurveSecp256k1        = "CURVE_SECP256K1"
	PathFormatBIP32       = "PATH_FORMAT_BIP32"
	AddressFormatEthereum = "ADDRESS_FORMAT_ETHEREUM"
	EthereumDefaultPath   = "m/44'/60'/0'/0/0"
)

// Whoami identifies the caller of a stamped request.
type Whoami struct {
	Code             int    `json:"code,omitempty"`
	OrganizationID   string `json:"organizationId"`
	OrganizationName string `json:"organizationName,omitempty"`
	UserID           string `json:"userId"`
	Username         string `json:"username"`
}

// Wallet is an HD wallet owned by an organization.
type Wallet struct {
	WalletID   string `json:"walletId"`
	WalletName string `json:"walletName"`
	Exported   bool   `json:"exported,omitempty"`
	Imported   bool   `json:"imported,omitempty"`
}

// WalletAccount is a derived address within a wallet.
type WalletAccount struct {
	OrganizationID string `json:"organizationId,omitempty"`
	WalletID       string `json:"walletId"`
	Curve          string `json:"curve,omitempty"`
	PathFormat     string `json:"pathFormat,omitempty"`
	Path           string `json:"path,omitempty"`
	AddressFormat  string `json:"addressFormat,omitempty"`
	Address        string `json:"address"`
}

// Attestation is the registration response of a new passkey.
type Attestation struct {
	CredentialID      string   `json:"credentialId"`
	ClientDataJSON    string   `json:"clientDataJson"`
	AttestationObject string   `json:"attestationObject"`
	Transports        []string `json:"transports"`
}

// AuthenticatorParams registers a passkey on a root user.
type AuthenticatorParams struct {
	AuthenticatorName string      `json:"authenticatorName"`
	Challenge         string      `json:"challenge"`
	Attestation       Attestation `json:"attestation"`
}

// APIKeyParams registers an API key on a root user.
type APIKeyParams struct {
	APIKeyName string `json:"apiKeyName"`
	PublicKey  string `json:"publicKey"`
}

// RootUser is a root quorum member of a new sub-organization.
type RootUser struct {
	UserName       string                `json:"userName"`
	UserEmail      string                `json:"userEmail,omitempty"`
	APIKeys        []APIKeyParams        `json:"apiKeys"`
	Authenticators []AuthenticatorParams `json:"authenticators"`
}

// WalletAccountParams describes one account to derive.
type WalletAccountParams struct {
	Curve         string `json:"curve"`
	PathFormat    string `json:"pathFormat"`
	Path          string `json:"path"`
	AddressFormat string `json:"addressFormat"`
}

// WalletParams describes the wallet created alongside a sub-organization.
type WalletParams struct {
	WalletName string                `json:"walletName"`
	Accounts   []WalletAccountParams `json:"accounts"`
}

// CreateSubOrganizationParams are the parameters of a create_sub_organization activity.
type CreateSubOrganizationParams struct {
	SubOrganizationName string        `json:"subOrganizationName"`
	RootQuorumThreshold int           `json:"rootQuorumThreshold"`
	RootUsers           []RootUser    `json:"rootUsers"`
	Wallet              *WalletParams `json:"wallet,omitempty"`
}

// CreatedWallet is the wallet reported by a completed sub-organization activity.
type CreatedWallet struct {
	WalletID  string   `json:"walletId"`
	Addresses []string `json:"addresses"`
}

// CreateSubOrganizationResult is the outcome of a create_sub_organization activity.
type CreateSubOrganizationResult struct {
	SubOrganizationID string         `json:"subOrganizationId"`
	Wallet            *CreatedWallet `json:"wallet,omitempty"`
	RootUserIDs       []string       `json:"rootUserIds,omitempty"`
}

// ActivityResult holds the typed result of a completed activity.
type ActivityResult struct {
	CreateSubOrganizationResultV4 *CreateSubOrganizationResult `json:"createSubOrganizationResultV4,omitempty"`
}

// ActivityFailure describes why an activity failed.
type ActivityFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Activity is a submitted mutation tracked by the custody API.
type Activity struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	Status         string           `json:"status"`
	Type           string           `json:"type"`
	Result         *ActivityResult  `json:"result,omitempty"`
	Failure        *ActivityFailure `json:"failure,omitempty"`
}

// Pending reports whether the activity has not reached a final state.
func (a *Activity) Pending() bool {
	return a.Status == ActivityStatusCreated || a.Status == ActivityStatusPending
}

type organizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

type walletAccountsRequest struct {
	OrganizationID string `json:"organizationId"`
	WalletID       string `json:"walletId"`
}

type activityRequest struct {
	OrganizationID string `json:"organizationId"`
	ActivityID     string `json:"activityId"`
}

type submitRequest struct {
	Type           string `json:"type"`
	TimestampMs    string `json:"timestampMs"`
	OrganizationID string `json:"organizationId"`
	Parameters     any    `json:"parameters"`
}

type activityResponse struct {
	Activity Activity `json:"activity"`
}

type walletsResponse struct {
	Wallets []Wallet `json:"wallets"`
}

type walletAccountsResponse struct {
	Accounts []WalletAccount `json:"accounts"`
}

type errorResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}
