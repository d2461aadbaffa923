package order_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"predictterm/client"
	"predictterm/logger"
	"predictterm/order"
	"predictterm/provider"
	"predictterm/wallet"
)

const (
	makerAddress  = "0xf39fd6e51aad88f6f4ce6ab8827279cffb92266a"
	rightChainHex = "0x13882" // 80002
	wrongChainHex = "0x1"
)

var (
	testNetwork = order.Network{
		ChainID: 80002,
		Name:    "Polygon Amoy",
		RPCURL:  "https://rpc-amoy.polygon.technology",
		Currency: order.Currency{
			Name:     "POL",
			Symbol:   "POL",
			Decimals: 18,
		},
	}
	testDomain = order.Domain{
		Name:              "Prediction Market",
		Version:           "1",
		VerifyingContract: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
	}
	testMarket = order.Market{
		ConditionID: "0xabcd1234567890abcdef1234567890abcdef1234567890abcdef1234567890ab",
		YesTokenID:  "1001",
		NoTokenID:   "1002",
		Collateral:  "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		Oracle:      "0x2279b7a0a67db372996a5fab50d91eaa73d2ebe6",
	}
)

type fakeProvider struct {
	mu       sync.Mutex
	respond  map[string]func(params []any) (any, error)
	calls    []string
	handlers map[string]provider.EventHandler
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		respond:  map[string]func(params []any) (any, error){},
		handlers: map[string]provider.EventHandler{},
	}
}

func (f *fakeProvider) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	h := f.respond[method]
	f.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("unexpected method %s", method)
	}
	v, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (f *fakeProvider) On(event string, handler provider.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeProvider) RemoveListener(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeProvider) stub(method string, v any) {
	f.stubFunc(method, func([]any) (any, error) { return v, nil })
}

func (f *fakeProvider) stubErr(method string, err error) {
	f.stubFunc(method, func([]any) (any, error) { return nil, err })
}

func (f *fakeProvider) stubFunc(method string, fn func(params []any) (any, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond[method] = fn
}

func (f *fakeProvider) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeProvider) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func connectedSession(t *testing.T, fake *fakeProvider) *wallet.Manager {
	t.Helper()
	fake.stub(provider.MethodAccounts, []string{makerAddress})
	fake.stub(provider.MethodChainID, rightChainHex)

	session := wallet.NewManager(fake, logger.Discard())
	session.Initialize(context.Background())
	require.Equal(t, wallet.Connected, session.State())
	fake.resetCalls()
	return session
}

func newWorkflow(session *wallet.Manager, fake *fakeProvider, submitURL string) *order.Workflow {
	return order.NewWorkflow(order.WorkflowConfig{
		Session:   session,
		Provider:  fake,
		Submitter: client.NewOrdersClient(submitURL, logger.Discard()),
		Network:   testNetwork,
		Domain:    testDomain,
		Log:       logger.Discard(),
	})
}

func buyIntent(amount string) order.Intent {
	return order.Intent{
		Market:  testMarket,
		Side:    order.Buy,
		Outcome: order.Yes,
		Amount:  amount,
		Price:   0.65,
	}
}

func TestSubmitHappyPath(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)
	fake.stub(provider.MethodSignTypedData, "0xsigned")

	var gotBody struct {
		Order     order.Order `json:"order"`
		Signature string      `json:"signature"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"order":{"orderHash":"0xdeadbeefcafe0123"}}`)
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)
	receipt, err := w.Submit(context.Background(), buyIntent("100"))
	require.NoError(t, err)
	require.Equal(t, "0xdeadbeefcafe0123", receipt.OrderHash)

	// Wire body carries the unsigned order beside its detached signature.
	require.Equal(t, "0xsigned", gotBody.Signature)
	require.Equal(t, makerAddress, gotBody.Order.Maker)
	require.Equal(t, "1001", gotBody.Order.TokenID)
	require.Equal(t, "100000000", gotBody.Order.MakerAmount)
	require.Equal(t, "153846153", gotBody.Order.TakerAmount)
	require.Equal(t, "0", gotBody.Order.Nonce)
	require.Equal(t, 200, gotBody.Order.FeeRateBps)

	status := w.Status()
	require.Equal(t, order.PhaseIdle, status.Phase)
	require.Equal(t, "0xdeadbeefcafe0123", status.OrderHash)
	require.NoError(t, status.Err)

	// Already on the right chain: no switch was attempted.
	require.Zero(t, fake.callCount(provider.MethodSwitchChain))
}

func TestSubmitRequiresConnectedWallet(t *testing.T) {
	fake := newFakeProvider()
	session := wallet.NewManager(nil, logger.Discard())

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrWalletNotConnected)
	require.Empty(t, fake.calls)
}

func TestSubmitValidatesAmountBeforeAnyNetworkCall(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("not-a-number"))
	require.ErrorIs(t, err, order.ErrInvalidAmount)
	require.Empty(t, fake.calls)
}

func TestWrongNetworkAbortsBeforeSigning(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	fake.stub(provider.MethodChainID, wrongChainHex)
	fake.stubErr(provider.MethodSwitchChain, &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected the request"})

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrWrongNetwork)

	// No signature is ever requested on the wrong network.
	require.Zero(t, fake.callCount(provider.MethodSignTypedData))
}

func TestStillWrongAfterSwitchAborts(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	// The wallet accepts the switch but stays on the wrong chain.
	fake.stub(provider.MethodChainID, wrongChainHex)
	fake.stub(provider.MethodSwitchChain, nil)

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrWrongNetwork)
	require.Zero(t, fake.callCount(provider.MethodSignTypedData))
}

func TestNetworkSwitchThenSign(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	// First read reports the wrong chain; after the switch the wallet is on
	// the right one.
	reads := 0
	fake.stubFunc(provider.MethodChainID, func([]any) (any, error) {
		reads++
		if reads == 1 {
			return wrongChainHex, nil
		}
		return rightChainHex, nil
	})
	fake.stub(provider.MethodSwitchChain, nil)
	fake.stub(provider.MethodSignTypedData, "0xsigned")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"order":{"orderHash":"0xabc"}}`)
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.NoError(t, err)
	require.Equal(t, 1, fake.callCount(provider.MethodSwitchChain))
}

func TestUnrecognizedChainIsAddedThenSwitched(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	reads := 0
	fake.stubFunc(provider.MethodChainID, func([]any) (any, error) {
		reads++
		if reads == 1 {
			return wrongChainHex, nil
		}
		return rightChainHex, nil
	})

	switches := 0
	fake.stubFunc(provider.MethodSwitchChain, func([]any) (any, error) {
		switches++
		if switches == 1 {
			return nil, &provider.RPCError{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
		}
		return nil, nil
	})
	fake.stub(provider.MethodAddChain, nil)
	fake.stub(provider.MethodSignTypedData, "0xsigned")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"order":{"orderHash":"0xabc"}}`)
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.NoError(t, err)
	require.Equal(t, 1, fake.callCount(provider.MethodAddChain))
	require.Equal(t, 2, fake.callCount(provider.MethodSwitchChain))
}

func TestAddNetworkFailureIsWrongNetwork(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	fake.stub(provider.MethodChainID, wrongChainHex)
	fake.stubErr(provider.MethodSwitchChain, &provider.RPCError{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID"})
	fake.stubErr(provider.MethodAddChain, &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected the request"})

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrWrongNetwork)
	require.Zero(t, fake.callCount(provider.MethodSignTypedData))
}

func TestSignatureRejectedIsNotRetried(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)
	fake.stubErr(provider.MethodSignTypedData, &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected the request"})

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrSignatureRejected)
	require.Equal(t, 1, fake.callCount(provider.MethodSignTypedData))
	require.Zero(t, requests)
}

func TestSubmissionRejectedCarriesBackendReason(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)
	fake.stub(provider.MethodSignTypedData, "0xsigned")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"insufficient balance"}`)
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)
	_, err := w.Submit(context.Background(), buyIntent("100"))

	var rejection *order.RejectionError
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, "insufficient balance", rejection.Reason)

	// The failure replaces any success state; no stale order hash survives.
	status := w.Status()
	require.Empty(t, status.OrderHash)
	require.Error(t, status.Err)
}

func TestTransportFailureIsSubmissionFailed(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)
	fake.stub(provider.MethodSignTypedData, "0xsigned")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	w := newWorkflow(session, fake, server.URL)
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.ErrorIs(t, err, order.ErrSubmissionFailed)
}

func TestOverlappingSubmissionsAreSerialized(t *testing.T) {
	fake := newFakeProvider()
	session := connectedSession(t, fake)

	signStarted := make(chan struct{})
	release := make(chan struct{})
	fake.stubFunc(provider.MethodSignTypedData, func([]any) (any, error) {
		close(signStarted)
		<-release
		return "0xsigned", nil
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"order":{"orderHash":"0xabc"}}`)
	}))
	defer server.Close()

	w := newWorkflow(session, fake, server.URL)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), buyIntent("100"))
		done <- err
	}()

	<-signStarted
	_, err := w.Submit(context.Background(), buyIntent("50"))
	require.ErrorIs(t, err, order.ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestResetClearsLastResult(t *testing.T) {
	fake := newFakeProvider()
	session := wallet.NewManager(nil, logger.Discard())

	w := newWorkflow(session, fake, "http://unused")
	_, err := w.Submit(context.Background(), buyIntent("100"))
	require.Error(t, err)
	require.Error(t, w.Status().Err)

	w.Reset()
	require.NoError(t, w.Status().Err)
	require.Empty(t, w.Status().OrderHash)
}
