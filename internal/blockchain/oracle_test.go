package blockchain

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

type transactCall struct {
	method string
	nonce  uint64
	params []interface{}
}

type fakeBinding struct {
	mu          sync.Mutex
	values      map[string][]interface{}
	callErr     error
	transactErr error
	calls       []string
	transacts   []transactCall
}

func (f *fakeBinding) Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, method)
	if f.callErr != nil {
		return f.callErr
	}
	*results = f.values[method]
	return nil
}

func (f *fakeBinding) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transactErr != nil {
		return nil, f.transactErr
	}
	nonce := opts.Nonce.Uint64()
	f.transacts = append(f.transacts, transactCall{method: method, nonce: nonce, params: params})
	return types.NewTransaction(nonce, common.Address{}, big.NewInt(0), 100000, big.NewInt(1), nil), nil
}

func (f *fakeBinding) transactCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transacts)
}

type fakeBackend struct {
	mu            sync.Mutex
	pending       uint64
	nonceCalls    int
	notFoundFirst int
	receiptCalls  int
	status        uint64
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.pending, nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptCalls <= f.notFoundFirst {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(7), TxHash: txHash}, nil
}

func newTestOracle(binding contractBinding, backend chainBackend) *Oracle {
	logger.SetOutput(io.Discard)
	return &Oracle{
		contract:       binding,
		backend:        backend,
		sides:          [2]string{"SideA", "SideB"},
		callTimeout:    time.Second,
		confirmTimeout: time.Second,
		pollInterval:   time.Millisecond,
	}
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return NewSignerFromKey(key, 5611)
}

func TestScoreGoalRejectsUnknownSideBeforeAnyCall(t *testing.T) {
	binding := &fakeBinding{}
	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	oracle := newTestOracle(binding, backend)

	_, err := oracle.ScoreGoal(context.Background(), newTestSigner(t), "France")
	if !errors.HasCode(err, errors.ErrInvalidSide) {
		t.Fatalf("expected INVALID_SIDE, got %v", err)
	}
	if binding.transactCount() != 0 || len(binding.calls) != 0 {
		t.Errorf("expected no ledger calls, got %d transacts and %d calls", binding.transactCount(), len(binding.calls))
	}
	if backend.nonceCalls != 0 || backend.receiptCalls != 0 {
		t.Errorf("expected no backend calls, got %d nonce and %d receipt", backend.nonceCalls, backend.receiptCalls)
	}
}

func TestScoreGoalInvalidSideWinsOverUnconfigured(t *testing.T) {
	oracle := NewOracle(&config.LedgerConfig{}, [2]string{"SideA", "SideB"}, nil)

	_, err := oracle.ScoreGoal(context.Background(), nil, "France")
	if !errors.HasCode(err, errors.ErrInvalidSide) {
		t.Fatalf("expected INVALID_SIDE, got %v", err)
	}

	_, err = oracle.ScoreGoal(context.Background(), nil, "SideA")
	if !errors.HasCode(err, errors.ErrLedgerUnavailable) {
		t.Fatalf("expected LEDGER_UNAVAILABLE, got %v", err)
	}
}

func TestScoreGoalRequiresExactSideName(t *testing.T) {
	for _, side := range []string{"  sideb ", "sidea", "SIDEA", "SideB "} {
		t.Run(side, func(t *testing.T) {
			binding := &fakeBinding{}
			backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
			oracle := newTestOracle(binding, backend)

			_, err := oracle.ScoreGoal(context.Background(), newTestSigner(t), side)
			if !errors.HasCode(err, errors.ErrInvalidSide) {
				t.Fatalf("expected INVALID_SIDE for %q, got %v", side, err)
			}
			if binding.transactCount() != 0 || backend.nonceCalls != 0 {
				t.Errorf("expected no ledger calls, got %d transacts", binding.transactCount())
			}
		})
	}
}

func TestScoreGoalPassesSideName(t *testing.T) {
	binding := &fakeBinding{}
	oracle := newTestOracle(binding, &fakeBackend{status: types.ReceiptStatusSuccessful})

	ref, err := oracle.ScoreGoal(context.Background(), newTestSigner(t), "SideB")
	if err != nil {
		t.Fatalf("score goal failed: %v", err)
	}
	if ref.BlockNumber != 7 || ref.Hash == "" {
		t.Errorf("unexpected tx ref %+v", ref)
	}

	if len(binding.transacts) != 1 {
		t.Fatalf("expected 1 transact, got %d", len(binding.transacts))
	}
	call := binding.transacts[0]
	if call.method != methodScoreGoal || call.params[0] != "SideB" {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestSubmitTipUnavailable(t *testing.T) {
	unconfigured := NewOracle(&config.LedgerConfig{}, [2]string{"SideA", "SideB"}, nil)
	if unconfigured.Configured() {
		t.Fatal("oracle without contract must be unconfigured")
	}

	_, err := unconfigured.SubmitTip(context.Background(), newTestSigner(t), true)
	if !errors.HasCode(err, errors.ErrLedgerUnavailable) {
		t.Errorf("expected LEDGER_UNAVAILABLE, got %v", err)
	}

	configured := newTestOracle(&fakeBinding{}, &fakeBackend{})
	_, err = configured.SubmitTip(context.Background(), nil, true)
	if !errors.HasCode(err, errors.ErrLedgerUnavailable) {
		t.Errorf("expected LEDGER_UNAVAILABLE without signer, got %v", err)
	}
}

func TestSubmitTipWaitsForReceipt(t *testing.T) {
	binding := &fakeBinding{}
	backend := &fakeBackend{pending: 3, notFoundFirst: 2, status: types.ReceiptStatusSuccessful}
	oracle := newTestOracle(binding, backend)

	ref, err := oracle.SubmitTip(context.Background(), newTestSigner(t), true)
	if err != nil {
		t.Fatalf("submit tip failed: %v", err)
	}
	if backend.receiptCalls != 3 {
		t.Errorf("expected 3 receipt polls, got %d", backend.receiptCalls)
	}
	if ref.BlockNumber != 7 {
		t.Errorf("expected block 7, got %d", ref.BlockNumber)
	}

	call := binding.transacts[0]
	if call.method != methodTip || call.nonce != 3 || call.params[0] != true {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestSubmitTipRevertedIsCallFailure(t *testing.T) {
	oracle := newTestOracle(&fakeBinding{}, &fakeBackend{status: types.ReceiptStatusFailed})

	_, err := oracle.SubmitTip(context.Background(), newTestSigner(t), false)
	if !errors.HasCode(err, errors.ErrLedgerCallFailed) {
		t.Errorf("expected LEDGER_CALL_FAILED, got %v", err)
	}
}

func TestSubmitTipConfirmationTimeout(t *testing.T) {
	backend := &fakeBackend{notFoundFirst: 1 << 30}
	oracle := newTestOracle(&fakeBinding{}, backend)
	oracle.confirmTimeout = 20 * time.Millisecond

	_, err := oracle.SubmitTip(context.Background(), newTestSigner(t), true)
	if !errors.HasCode(err, errors.ErrLedgerCallFailed) {
		t.Errorf("expected LEDGER_CALL_FAILED on timeout, got %v", err)
	}
}

func TestSubmitTipBroadcastFailureResyncsNonce(t *testing.T) {
	binding := &fakeBinding{transactErr: io.ErrUnexpectedEOF}
	backend := &fakeBackend{pending: 10, status: types.ReceiptStatusSuccessful}
	oracle := newTestOracle(binding, backend)
	signer := newTestSigner(t)

	_, err := oracle.SubmitTip(context.Background(), signer, true)
	if !errors.HasCode(err, errors.ErrLedgerCallFailed) {
		t.Fatalf("expected LEDGER_CALL_FAILED, got %v", err)
	}

	binding.transactErr = nil
	if _, err := oracle.SubmitTip(context.Background(), signer, true); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if backend.nonceCalls != 2 {
		t.Errorf("expected nonce resync after failure, got %d lookups", backend.nonceCalls)
	}
	if binding.transacts[0].nonce != 10 {
		t.Errorf("expected nonce 10, got %d", binding.transacts[0].nonce)
	}
}

func TestConcurrentSubmitsGetDistinctNonces(t *testing.T) {
	binding := &fakeBinding{}
	backend := &fakeBackend{pending: 5, status: types.ReceiptStatusSuccessful}
	oracle := newTestOracle(binding, backend)
	signer := newTestSigner(t)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := oracle.SubmitTip(context.Background(), signer, i%2 == 0); err != nil {
				t.Errorf("submit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, call := range binding.transacts {
		if seen[call.nonce] {
			t.Fatalf("nonce %d used twice", call.nonce)
		}
		seen[call.nonce] = true
	}
	for nonce := uint64(5); nonce < 5+n; nonce++ {
		if !seen[nonce] {
			t.Errorf("nonce %d was skipped", nonce)
		}
	}
	if backend.nonceCalls != 1 {
		t.Errorf("expected a single nonce sync, got %d", backend.nonceCalls)
	}
}

func TestReadScoresUnconfiguredIsZero(t *testing.T) {
	oracle := NewOracle(&config.LedgerConfig{}, [2]string{"SideA", "SideB"}, nil)

	if got := oracle.ReadScores(context.Background()); got != (models.Scores{}) {
		t.Errorf("expected {0, 0}, got %+v", got)
	}
	if got := oracle.ReadSentiment(context.Background()); got != (models.Sentiment{}) {
		t.Errorf("expected zero sentiment, got %+v", got)
	}
}

func TestReadsFailOpen(t *testing.T) {
	oracle := newTestOracle(&fakeBinding{callErr: io.EOF}, &fakeBackend{})

	if got := oracle.ReadScores(context.Background()); got != (models.Scores{}) {
		t.Errorf("expected {0, 0}, got %+v", got)
	}
	if got := oracle.ReadSentiment(context.Background()); got != (models.Sentiment{}) {
		t.Errorf("expected zero sentiment, got %+v", got)
	}
}

func TestReadScoresAndSentiment(t *testing.T) {
	binding := &fakeBinding{values: map[string][]interface{}{
		methodSideAGoals: {big.NewInt(2)},
		methodSideBGoals: {big.NewInt(1)},
		methodSentiment:  {big.NewInt(7), big.NewInt(4), big.NewInt(11)},
	}}
	oracle := newTestOracle(binding, &fakeBackend{})

	if got := oracle.ReadScores(context.Background()); got != (models.Scores{ScoreA: 2, ScoreB: 1}) {
		t.Errorf("unexpected scores %+v", got)
	}
	if got := oracle.ReadSentiment(context.Background()); got != (models.Sentiment{SideA: 7, SideB: 4, Total: 11}) {
		t.Errorf("unexpected sentiment %+v", got)
	}
}

func TestReadScoresMalformedOutput(t *testing.T) {
	binding := &fakeBinding{values: map[string][]interface{}{
		methodSideAGoals: {"two"},
	}}
	oracle := newTestOracle(binding, &fakeBackend{})

	if got := oracle.ReadScores(context.Background()); got != (models.Scores{}) {
		t.Errorf("expected zero scores on malformed output, got %+v", got)
	}
}

func TestNewSignerParsesHexKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	signer, err := NewSigner(hexKey, 5611)
	if err != nil {
		t.Fatalf("failed to parse key: %v", err)
	}
	if signer.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Errorf("address mismatch")
	}

	if _, err := NewSigner("not-a-key", 5611); !errors.HasCode(err, errors.ErrInvalidKey) {
		t.Errorf("expected INVALID_KEY, got %v", err)
	}
}

