package repository_test

import (
	"io"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"omnitip-relay/internal/config"
	"omnitip-relay/internal/repository"
	"omnitip-relay/pkg/logger"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := repository.Open(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = repository.Close(db)
	})
	return db
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "omnitip.db"))
}
