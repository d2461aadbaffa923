package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"predictterm/logger"
	"predictterm/provider"
	"predictterm/wallet"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseNetworkCheck
	PhaseSigning
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseNetworkCheck:
		return "network_check"
	case PhaseSigning:
		return "signing"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Status is the user-visible outcome of the last submission. OrderHash and
// Err are mutually exclusive: a new result always clears the other field.
type Status struct {
	Phase     Phase
	OrderHash string
	Err       error
}

// Submitter posts a signed order to the submission service and returns the
// order hash. Structured backend refusals come back as *RejectionError;
// anything else is treated as a transport failure.
type Submitter interface {
	Submit(ctx context.Context, ord Order, signature string) (string, error)
}

// WorkflowConfig wires a Workflow. Now is optional and defaults to time.Now;
// tests inject it to pin salts and expirations.
type WorkflowConfig struct {
	Session   *wallet.Manager
	Provider  provider.Provider
	Submitter Submitter
	Network   Network
	Domain    Domain
	Log       *logger.Logger
	Now       func() time.Time
}

// Workflow drives one trade intent through validation, network enforcement,
// payload construction, signing, and submission. It reads session state but
// never mutates it. Every failure is converted into exactly one taxonomy
// error; nothing propagates as an uncaught fault.
type Workflow struct {
	session   *wallet.Manager
	provider  provider.Provider
	submitter Submitter
	network   Network
	domain    Domain
	log       *logger.Logger
	now       func() time.Time

	// busy serializes invocations: overlapping submissions would share a
	// salt window and leave the outcome ambiguous.
	busy sync.Mutex

	mu     sync.Mutex
	status Status
}

func NewWorkflow(cfg WorkflowConfig) *Workflow {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Workflow{
		session:   cfg.Session,
		provider:  cfg.Provider,
		submitter: cfg.Submitter,
		network:   cfg.Network,
		domain:    cfg.Domain,
		log:       cfg.Log,
		now:       now,
	}
}

func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Reset clears the last result, as a UI does when the user edits the amount.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.status = Status{}
	w.mu.Unlock()
}

// Submit runs the full signing workflow for one intent. It returns a receipt
// or exactly one of the taxonomy errors; the same outcome is retained in
// Status until the next Submit or Reset.
func (w *Workflow) Submit(ctx context.Context, intent Intent) (*Receipt, error) {
	if !w.busy.TryLock() {
		return nil, ErrSubmissionInFlight
	}
	defer w.busy.Unlock()

	id := uuid.NewString()[:8]
	receipt, err := w.run(ctx, id, intent)
	if err != nil {
		w.setResult("", err)
		w.log.Error("order_submit_failed", "id", id, "err", err)
		return nil, err
	}
	w.setResult(receipt.OrderHash, nil)
	w.log.Info("order_submitted", "id", id, "order_hash", receipt.OrderHash)
	return receipt, nil
}

func (w *Workflow) run(ctx context.Context, id string, intent Intent) (*Receipt, error) {
	defer w.setPhase(PhaseIdle)

	w.setPhase(PhaseValidating)
	maker := w.session.Address()
	if maker == "" {
		return nil, ErrWalletNotConnected
	}
	if _, err := parseAmount(intent.Amount); err != nil {
		return nil, err
	}

	w.setPhase(PhaseNetworkCheck)
	if err := w.ensureNetwork(ctx, id); err != nil {
		return nil, err
	}

	w.setPhase(PhaseSigning)
	ord, err := Build(intent, maker, w.now())
	if err != nil {
		return nil, err
	}
	signature, err := w.signOrder(ctx, maker, ord)
	if err != nil {
		return nil, err
	}

	w.setPhase(PhaseSubmitting)
	hash, err := w.submitter.Submit(ctx, ord, signature)
	if err != nil {
		var rejection *RejectionError
		if errors.As(err, &rejection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	return &Receipt{OrderHash: hash, Order: ord}, nil
}

// ensureNetwork enforces the required chain before anything is signed: the
// payload is chain-bound, and a mismatch would either be refused by the
// backend or silently accepted against the wrong deployment.
func (w *Workflow) ensureNetwork(ctx context.Context, id string) error {
	chainID, err := w.readChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrongNetwork, err)
	}
	if chainID == w.network.ChainID {
		return nil
	}

	w.log.Info("switching_network", "id", id, "from", chainID, "to", w.network.ChainID)
	if err := w.switchChain(ctx); err != nil {
		if !provider.IsUnrecognizedChain(err) {
			return fmt.Errorf("%w: %v", ErrWrongNetwork, err)
		}
		// The wallet has never seen this chain: register it, then switch.
		if _, err := w.provider.Request(ctx, provider.MethodAddChain, w.network.AddChainParams()); err != nil {
			return fmt.Errorf("%w: add network failed: %v", ErrWrongNetwork, err)
		}
		if err := w.switchChain(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrWrongNetwork, err)
		}
	}

	chainID, err = w.readChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrongNetwork, err)
	}
	if chainID != w.network.ChainID {
		return fmt.Errorf("%w: on chain %d, need %d", ErrWrongNetwork, chainID, w.network.ChainID)
	}
	return nil
}

func (w *Workflow) switchChain(ctx context.Context) error {
	_, err := w.provider.Request(ctx, provider.MethodSwitchChain, w.network.SwitchChainParams())
	return err
}

func (w *Workflow) readChainID(ctx context.Context) (int64, error) {
	raw, err := w.provider.Request(ctx, provider.MethodChainID)
	if err != nil {
		return 0, err
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, err
	}
	return parseChainID(hexID)
}

// signOrder requests the structured-data signature from the wallet. A user
// denial is surfaced as ErrSignatureRejected and never retried here.
func (w *Workflow) signOrder(ctx context.Context, maker string, ord Order) (string, error) {
	payload, err := json.Marshal(TypedData(ord, w.domain, w.network.ChainID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}

	raw, err := w.provider.Request(ctx, provider.MethodSignTypedData, maker, string(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}

	var signature string
	if err := json.Unmarshal(raw, &signature); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}
	return signature, nil
}

func (w *Workflow) setPhase(p Phase) {
	w.mu.Lock()
	w.status.Phase = p
	w.mu.Unlock()
}

func (w *Workflow) setResult(hash string, err error) {
	w.mu.Lock()
	w.status.OrderHash = hash
	w.status.Err = err
	w.mu.Unlock()
}
