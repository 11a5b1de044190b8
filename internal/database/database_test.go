package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = '?' AND c IN (?, ?)"
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = '?' AND c IN ($2, $3)", Postgres.Rebind(q))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, MySQL.IsUniqueViolation(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, MySQL.IsUniqueViolation(&mysql.MySQLError{Number: 1213}))
	assert.True(t, Postgres.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, Postgres.IsUniqueViolation(errors.New("boom")))
}

func TestDSN(t *testing.T) {
	my, err := Options{Driver: MySQL, User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "tickets"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "app:pw@tcp(db:3306)/tickets?charset=utf8mb4&parseTime=true&loc=UTC", my)

	pg, err := Options{Driver: Postgres, User: "app", Host: "db", Port: "5432", Name: "tickets"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db:5432/tickets?sslmode=disable&timezone=UTC", pg)

	_, err = Options{Driver: "sqlite"}.DSN()
	assert.Error(t, err)
}

func TestStatements(t *testing.T) {
	my := Statements(MySQL)
	require.Len(t, my, len(tables))
	for _, s := range my {
		assert.NotContains(t, s, "{ts}")
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "))
	}
	assert.Contains(t, my[1], "INDEX idx_locks_expires (expires_at)")

	pg := Statements(Postgres)
	assert.Contains(t, pg, "CREATE INDEX IF NOT EXISTS idx_locks_expires ON reservation_locks (expires_at)")
	assert.NotContains(t, strings.Join(pg, "\n"), "DATETIME")
}
