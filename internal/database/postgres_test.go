package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// setupTestDB connects to the database named by GIGCHAT_TEST_DATABASE_URL
// and empties it. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	connStr := os.Getenv("GIGCHAT_TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("GIGCHAT_TEST_DATABASE_URL not set")
	}

	db, err := NewPostgresStore(connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("TRUNCATE attachments, messages, bids, projects, users")
	if err != nil {
		t.Fatalf("Failed to clean up test data: %v", err)
	}

	return db
}

func TestNewPostgresStoreInvalidConnection(t *testing.T) {
	db, err := NewPostgresStore("invalid connection string")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestPostgresStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return setupTestDB(t)
	})
}
