package service_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"omnitip-relay/internal/blockchain"
	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/internal/repository"
	"omnitip-relay/pkg/logger"
)

var testSides = [2]string{"England", "Argentina"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := repository.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "service.db"),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = repository.Close(db) })
	return db
}

type fakeLedger struct {
	mu        sync.Mutex
	tipCalls  int
	goalCalls []string
	ref       *blockchain.TxRef
	err       error
	scores    models.Scores
	sentiment models.Sentiment
}

func (f *fakeLedger) SubmitTip(ctx context.Context, signer *blockchain.Signer, predictsSideA bool) (*blockchain.TxRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tipCalls++
	return f.ref, f.err
}

func (f *fakeLedger) ScoreGoal(ctx context.Context, signer *blockchain.Signer, side string) (*blockchain.TxRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goalCalls = append(f.goalCalls, side)
	return f.ref, f.err
}

func (f *fakeLedger) ReadScores(ctx context.Context) models.Scores {
	return f.scores
}

func (f *fakeLedger) ReadSentiment(ctx context.Context) models.Sentiment {
	return f.sentiment
}

func (f *fakeLedger) Sides() [2]string {
	return testSides
}

type fakeStore struct {
	mu     sync.Mutex
	tips   []models.Tip
	err    error
	nextID uint64
}

func (f *fakeStore) Record(ctx context.Context, tip *models.Tip) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.tips = append(f.tips, *tip)
	return f.nextID, nil
}

type fakeDedup struct {
	seen     map[string]bool
	err      error
	released []string
}

func (f *fakeDedup) Claim(ctx context.Context, messageID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[messageID] {
		return false, nil
	}
	f.seen[messageID] = true
	return true, nil
}

func (f *fakeDedup) Release(ctx context.Context, messageID string) error {
	delete(f.seen, messageID)
	f.released = append(f.released, messageID)
	return nil
}

type recordingNotifier struct {
	tips []models.Tip
}

func (r *recordingNotifier) TipRecorded(tip models.Tip) {
	r.tips = append(r.tips, tip)
}
