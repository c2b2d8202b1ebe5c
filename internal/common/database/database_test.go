package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:heart_rate_data.db?_pragma=busy_timeout(5000)", sqliteDSN(""))
	assert.Equal(t, "file:out/hr.db?_pragma=busy_timeout(5000)", sqliteDSN(" out/hr.db "))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
}

func TestNewSQLiteDB_Memory(t *testing.T) {
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
