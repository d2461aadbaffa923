package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"predictterm/logger"
	"predictterm/provider"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNoProvider means no wallet provider is available in the environment;
// the user needs to install or start one before connecting.
var ErrNoProvider = errors.New("no wallet provider found")

// Manager is the single source of truth for the wallet session: whether we
// are connected, to which address, on which chain. All other components read
// session state through it and never mutate it.
//
// Invariant: the address is set exactly when the state is Connected.
type Manager struct {
	provider provider.Provider
	log      *logger.Logger

	mu              sync.Mutex
	address         string
	chainID         int64
	state           State
	initialized     bool
	onNetworkChange func(chainID int64)
}

// NewManager accepts a nil provider; the session then stays Disconnected and
// Connect reports ErrNoProvider.
func NewManager(p provider.Provider, log *logger.Logger) *Manager {
	return &Manager{provider: p, log: log}
}

// OnNetworkChange registers a hook invoked after the session resynchronizes
// on an external chain change, so consumers can drop chain-bound caches.
// Must be called before Initialize.
func (m *Manager) OnNetworkChange(fn func(chainID int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNetworkChange = fn
}

// Initialize adopts an already-authorized account without prompting the user
// and subscribes to provider events for the lifetime of the session.
// Provider failures are logged and leave the session untouched.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.provider == nil || m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	m.adoptExisting(ctx)

	m.provider.On(provider.EventAccountsChanged, m.handleAccountsChanged)
	m.provider.On(provider.EventChainChanged, m.handleChainChanged)
}

// Shutdown drops the event subscriptions. The session itself carries no
// other resources.
func (m *Manager) Shutdown() {
	if m.provider == nil {
		return
	}
	m.provider.RemoveListener(provider.EventAccountsChanged)
	m.provider.RemoveListener(provider.EventChainChanged)
}

// Connect requests account authorization from the wallet, which may block on
// user approval. The only error it returns is ErrNoProvider; any other
// failure (user denial, provider fault) leaves the session Disconnected and
// is reported through state, not an error. The Connecting state is always
// resolved, whatever the outcome.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		return ErrNoProvider
	}

	m.mu.Lock()
	m.state = Connecting
	m.address = ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.address != "" {
			m.state = Connected
		} else {
			m.state = Disconnected
		}
		m.mu.Unlock()
	}()

	accounts, err := m.requestAccountList(ctx, provider.MethodRequestAccounts)
	if err != nil {
		m.log.Error("wallet_connect_failed", "err", err)
		return nil
	}
	if len(accounts) == 0 {
		m.log.Warn("wallet_connect_no_accounts")
		return nil
	}

	chainID, err := m.requestChainID(ctx)
	if err != nil {
		m.log.Error("wallet_chain_query_failed", "err", err)
		return nil
	}

	m.mu.Lock()
	m.address = normalizeAddress(accounts[0])
	m.chainID = chainID
	m.mu.Unlock()

	m.log.Info("wallet_connected", "address", normalizeAddress(accounts[0]), "chain_id", chainID)
	return nil
}

// Disconnect forgets the session locally. Providers generally cannot revoke
// an authorization, so the wallet is not told anything.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.address = ""
	m.chainID = 0
	m.state = Disconnected
	m.mu.Unlock()
	m.log.Info("wallet_disconnected")
}

func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

func (m *Manager) ChainID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainID
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// adoptExisting is the no-prompt account query used on startup and on
// resynchronization after a chain change.
func (m *Manager) adoptExisting(ctx context.Context) {
	accounts, err := m.requestAccountList(ctx, provider.MethodAccounts)
	if err != nil {
		m.log.Error("wallet_account_query_failed", "err", err)
		return
	}
	if len(accounts) == 0 {
		m.mu.Lock()
		m.address = ""
		m.state = Disconnected
		m.mu.Unlock()
		return
	}

	chainID, err := m.requestChainID(ctx)
	if err != nil {
		m.log.Error("wallet_chain_query_failed", "err", err)
		return
	}

	m.mu.Lock()
	m.address = normalizeAddress(accounts[0])
	m.chainID = chainID
	m.state = Connected
	m.mu.Unlock()
}

func (m *Manager) handleAccountsChanged(payload json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		m.log.Warn("wallet_bad_accounts_event", "err", err)
		return
	}

	if len(accounts) == 0 {
		m.mu.Lock()
		m.address = ""
		m.state = Disconnected
		m.mu.Unlock()
		m.log.Info("wallet_accounts_revoked")
		return
	}

	m.mu.Lock()
	m.address = normalizeAddress(accounts[0])
	m.state = Connected
	m.mu.Unlock()
	m.log.Info("wallet_account_switched", "address", normalizeAddress(accounts[0]))
}

// handleChainChanged adopts the new chain id and resynchronizes the whole
// session in place. A browser client would reload the page here; in a
// long-lived process the same invariant (no stale chain-bound state) is met
// by re-deriving the session and notifying consumers to drop their caches.
func (m *Manager) handleChainChanged(payload json.RawMessage) {
	var hexID string
	if err := json.Unmarshal(payload, &hexID); err != nil {
		m.log.Warn("wallet_bad_chain_event", "err", err)
		return
	}
	chainID, err := parseChainID(hexID)
	if err != nil {
		m.log.Warn("wallet_bad_chain_event", "chain", hexID, "err", err)
		return
	}

	m.mu.Lock()
	m.chainID = chainID
	hook := m.onNetworkChange
	m.mu.Unlock()

	m.log.Info("wallet_chain_changed", "chain_id", chainID)
	m.adoptExisting(context.Background())

	if hook != nil {
		hook(chainID)
	}
}

func (m *Manager) requestAccountList(ctx context.Context, method string) ([]string, error) {
	raw, err := m.provider.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (m *Manager) requestChainID(ctx context.Context) (int64, error) {
	raw, err := m.provider.Request(ctx, provider.MethodChainID)
	if err != nil {
		return 0, err
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, err
	}
	return parseChainID(hexID)
}

func normalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

func parseChainID(hexID string) (int64, error) {
	s := strings.TrimPrefix(strings.ToLower(hexID), "0x")
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return id, nil
}
