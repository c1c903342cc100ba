package service_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"omnitip-relay/internal/blockchain"
	"omnitip-relay/internal/config"
	"omnitip-relay/internal/repository"
	"omnitip-relay/internal/sentiment"
	"omnitip-relay/internal/service"
	"omnitip-relay/internal/wallet"
	"omnitip-relay/pkg/errors"
)

func newClassifier() *sentiment.Classifier {
	return sentiment.New([]string{"england", "inglaterra"})
}

func TestIngestWithUnconfiguredLedgerStillRecords(t *testing.T) {
	ctx := context.Background()
	tips := repository.NewTipRepository(newTestDB(t))
	oracle := blockchain.NewOracle(&config.LedgerConfig{}, testSides, nil)

	ingestor := service.NewIngestor(oracle, nil, tips, newClassifier(), "omnitip-salt")

	ack, err := ingestor.Ingest(ctx, service.InboundMessage{
		SenderIdentifier: "+15551234567",
		Text:             "Argentina next",
	})
	if err != nil {
		t.Fatalf("ingest must not fail without a ledger: %v", err)
	}
	if ack.TxHash != "" {
		t.Errorf("expected no tx hash, got %s", ack.TxHash)
	}

	count, err := tips.CountAll(ctx)
	if err != nil || count != 1 {
		t.Errorf("expected exactly one tip, got %d (%v)", count, err)
	}
}

func TestIngestEnglandScenario(t *testing.T) {
	ctx := context.Background()
	tips := repository.NewTipRepository(newTestDB(t))
	ledger := &fakeLedger{ref: &blockchain.TxRef{Hash: "0xfeed", BlockNumber: 9}}
	now := time.UnixMilli(1718000000123)

	ingestor := service.NewIngestor(ledger, nil, tips, newClassifier(), "omnitip-salt",
		service.WithClock(func() time.Time { return now }))

	ack, err := ingestor.Ingest(ctx, service.InboundMessage{
		SenderIdentifier: "+15551234567",
		Text:             "I think England wins",
		Source:           "whatsapp",
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if !ack.PredictsSideA || ack.TxHash != "0xfeed" || ack.TraceID == "" {
		t.Errorf("unexpected ack %+v", ack)
	}
	if ledger.tipCalls != 1 {
		t.Errorf("expected one ledger submission, got %d", ledger.tipCalls)
	}

	recent, err := tips.Recent(ctx, repository.DefaultRecentLimit)
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected one recorded tip, got %d (%v)", len(recent), err)
	}
	tip := recent[0]

	if !tip.PredictsSideA {
		t.Error("expected predictsSideA")
	}
	if !strings.HasSuffix(tip.Identity, "4567") || strings.Contains(tip.Identity, "555") {
		t.Errorf("identity must be masked to the last digits, got %q", tip.Identity)
	}
	if tip.WalletAddress == "" || tip.WalletAddress != wallet.Derive("+15551234567", "omnitip-salt").Hex() {
		t.Errorf("unexpected wallet %q", tip.WalletAddress)
	}
	if tip.Timestamp != now.UnixMilli() || tip.TxHash != "0xfeed" || tip.ID != ack.TipID {
		t.Errorf("unexpected stored tip %+v", tip)
	}
}

func TestIngestSwallowsLedgerFailure(t *testing.T) {
	store := &fakeStore{}
	ledger := &fakeLedger{err: errors.New(errors.ErrLedgerCallFailed, "rpc down", io.EOF)}

	ingestor := service.NewIngestor(ledger, nil, store, newClassifier(), "salt")

	ack, err := ingestor.Ingest(context.Background(), service.InboundMessage{
		SenderIdentifier: "+447700900123",
		Text:             "inglaterra!",
	})
	if err != nil {
		t.Fatalf("ledger failure must not fail ingestion: %v", err)
	}
	if ack.TxHash != "" || len(store.tips) != 1 || ledger.tipCalls != 1 {
		t.Errorf("expected one record and no tx, got ack=%+v tips=%d calls=%d", ack, len(store.tips), ledger.tipCalls)
	}
}

func TestIngestSurfacesStorageFault(t *testing.T) {
	store := &fakeStore{err: io.ErrClosedPipe}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{Hash: "0x1"}}, nil, store, newClassifier(), "salt")

	_, err := ingestor.Ingest(context.Background(), service.InboundMessage{
		SenderIdentifier: "+15551234567",
		Text:             "england",
	})
	if !errors.HasCode(err, errors.ErrStorageFault) {
		t.Errorf("expected STORAGE_FAULT, got %v", err)
	}
}

func TestIngestRejectsEmptyText(t *testing.T) {
	store := &fakeStore{}
	ledger := &fakeLedger{}
	ingestor := service.NewIngestor(ledger, nil, store, newClassifier(), "salt")

	for _, text := range []string{"", "   \n\t"} {
		_, err := ingestor.Ingest(context.Background(), service.InboundMessage{
			SenderIdentifier: "+15551234567",
			Text:             text,
		})
		if !errors.HasCode(err, errors.ErrEmptyMessage) {
			t.Errorf("expected EMPTY_MESSAGE for %q, got %v", text, err)
		}
	}
	if len(store.tips) != 0 || ledger.tipCalls != 0 {
		t.Errorf("empty messages must not reach ledger or store")
	}
}

func TestIngestPlaceholderDefaultsToSideB(t *testing.T) {
	store := &fakeStore{}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{}}, nil, store, newClassifier(), "salt")

	ack, err := ingestor.Ingest(context.Background(), service.InboundMessage{
		SenderIdentifier: "+15551234567",
		Text:             "[Voice message - processing failed]",
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if ack.PredictsSideA || len(store.tips) != 1 {
		t.Errorf("placeholder must be recorded with the default label, got %+v", ack)
	}
}

func TestIngestDeduplicatesRedelivery(t *testing.T) {
	store := &fakeStore{}
	ledger := &fakeLedger{ref: &blockchain.TxRef{Hash: "0x2"}}
	notifier := &recordingNotifier{}
	ingestor := service.NewIngestor(ledger, nil, store, newClassifier(), "salt",
		service.WithDeduplicator(&fakeDedup{seen: map[string]bool{}}),
		service.WithNotifier(notifier))

	msg := service.InboundMessage{MessageID: "wamid.1", SenderIdentifier: "+15551234567", Text: "england"}

	first, err := ingestor.Ingest(context.Background(), msg)
	if err != nil || first.Duplicate {
		t.Fatalf("first delivery must be processed, got %+v (%v)", first, err)
	}
	second, err := ingestor.Ingest(context.Background(), msg)
	if err != nil || !second.Duplicate {
		t.Fatalf("second delivery must be a duplicate, got %+v (%v)", second, err)
	}

	if len(store.tips) != 1 || ledger.tipCalls != 1 {
		t.Errorf("expected one record and one submission, got %d and %d", len(store.tips), ledger.tipCalls)
	}
	if len(notifier.tips) != 1 || notifier.tips[0].ID != first.TipID {
		t.Errorf("expected notifier to receive the recorded tip, got %+v", notifier.tips)
	}
}

func TestIngestProceedsWhenDedupFails(t *testing.T) {
	store := &fakeStore{}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{}}, nil, store, newClassifier(), "salt",
		service.WithDeduplicator(&fakeDedup{err: io.EOF}))

	msg := service.InboundMessage{MessageID: "wamid.2", SenderIdentifier: "+15551234567", Text: "england"}
	for i := 0; i < 2; i++ {
		if _, err := ingestor.Ingest(context.Background(), msg); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}
	if len(store.tips) != 2 {
		t.Errorf("expected both deliveries recorded without dedup, got %d", len(store.tips))
	}
}

func TestIngestRecordsAfterCallerCancels(t *testing.T) {
	store := &fakeStore{}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{}}, nil, store, newClassifier(), "salt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ingestor.Ingest(ctx, service.InboundMessage{SenderIdentifier: "+1", Text: "england"}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(store.tips) != 1 {
		t.Errorf("expected tip to be recorded, got %d", len(store.tips))
	}
}

func TestIngestRedeliveryAfterStorageFaultIsRecorded(t *testing.T) {
	store := &fakeStore{err: errors.New(errors.ErrStorageFault, "disk full", io.ErrShortWrite)}
	dedup := &fakeDedup{seen: map[string]bool{}}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{}}, nil, store, newClassifier(), "salt",
		service.WithDeduplicator(dedup))

	msg := service.InboundMessage{MessageID: "wamid.9", SenderIdentifier: "+15551234567", Text: "england"}

	if _, err := ingestor.Ingest(context.Background(), msg); !errors.HasCode(err, errors.ErrStorageFault) {
		t.Fatalf("expected STORAGE_FAULT, got %v", err)
	}
	if len(dedup.released) != 1 || dedup.released[0] != "wamid.9" {
		t.Fatalf("expected the claim to be released, got %v", dedup.released)
	}

	store.err = nil
	ack, err := ingestor.Ingest(context.Background(), msg)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if ack.Duplicate {
		t.Error("redelivery after a storage fault must not be treated as a duplicate")
	}
	if len(store.tips) != 1 {
		t.Errorf("expected the redelivered tip to be recorded once, got %d", len(store.tips))
	}
}

func TestIngestDuplicateDoesNotReleaseClaim(t *testing.T) {
	store := &fakeStore{}
	dedup := &fakeDedup{seen: map[string]bool{"wamid.10": true}}
	ingestor := service.NewIngestor(&fakeLedger{ref: &blockchain.TxRef{}}, nil, store, newClassifier(), "salt",
		service.WithDeduplicator(dedup))

	ack, err := ingestor.Ingest(context.Background(), service.InboundMessage{
		MessageID: "wamid.10", SenderIdentifier: "+15551234567", Text: "england",
	})
	if err != nil || !ack.Duplicate {
		t.Fatalf("expected duplicate ack, got %+v (%v)", ack, err)
	}
	if len(dedup.released) != 0 || len(store.tips) != 0 {
		t.Errorf("duplicate must neither release nor record, got released=%v tips=%d", dedup.released, len(store.tips))
	}
}
