package models

import (
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"

	"github.com/corvana/control-plane/events-ingest/config/database"
)

// setupMockStore duplicates tests.SetupMockStore verbatim: the tests package
// imports models (tests/mocked_key_resolver.go), so importing it from these
// in-package tests would be an import cycle.
func setupMockStore(t *testing.T) (*database.DB, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(-4)}))

	db, err := database.OpenConnection(logger, dialector)
	if err != nil {
		t.Fatalf("Failed to open gorm connection: %v", err)
	}

	return db, mock, func() {
		mockDB.Close()
	}
}

func setupApiStore(t *testing.T) (*ApiStore, sqlmock.Sqlmock, func()) {
	db, mock, delete := setupMockStore(t)

	store := &ApiStore{
		db: db,
	}

	return store, mock, delete
}
