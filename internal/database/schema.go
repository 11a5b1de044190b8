package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type table struct {
	name    string
	columns string
	indexes []string // "name (cols)"
}

// Column types are expressed with {ts} and {bool} so one definition serves
// both dialects.
var tables = []table{
	{
		name: "events",
		columns: `id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			sub_name VARCHAR(255) NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			event_date VARCHAR(64) NOT NULL DEFAULT '',
			event_time VARCHAR(64) NOT NULL DEFAULT '',
			phases TEXT NOT NULL,
			categories TEXT NOT NULL,
			updated_at {ts} NOT NULL`,
	},
	{
		name: "reservation_locks",
		columns: `lock_key VARCHAR(255) PRIMARY KEY,
			lock_id VARCHAR(64) NOT NULL,
			ticket_id VARCHAR(64) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			buyer_id VARCHAR(128) NOT NULL,
			created_at {ts} NOT NULL,
			expires_at {ts} NOT NULL`,
		indexes: []string{"idx_locks_expires (expires_at)"},
	},
	{
		name: "orders",
		columns: `id VARCHAR(64) PRIMARY KEY,
			ticket_id VARCHAR(64) NOT NULL UNIQUE,
			transaction_id VARCHAR(64) NOT NULL,
			buyer_id VARCHAR(128) NOT NULL,
			buyer_name VARCHAR(255) NOT NULL DEFAULT '',
			buyer_email VARCHAR(255) NOT NULL DEFAULT '',
			event_id VARCHAR(64) NOT NULL,
			category VARCHAR(255) NOT NULL,
			phase VARCHAR(255) NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			unit_price BIGINT NOT NULL,
			subtotal BIGINT NOT NULL,
			tax BIGINT NOT NULL,
			fee BIGINT NOT NULL,
			total BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			payment_ref VARCHAR(128) NOT NULL,
			created_at {ts} NOT NULL`,
		indexes: []string{"idx_orders_buyer (buyer_id, created_at)"},
	},
	{
		name: "tickets",
		columns: `id VARCHAR(64) PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_sub_name VARCHAR(255) NOT NULL DEFAULT '',
			event_date VARCHAR(64) NOT NULL DEFAULT '',
			event_time VARCHAR(64) NOT NULL DEFAULT '',
			event_location VARCHAR(255) NOT NULL DEFAULT '',
			buyer_id VARCHAR(128) NOT NULL,
			buyer_name VARCHAR(255) NOT NULL DEFAULT '',
			category VARCHAR(255) NOT NULL,
			phase VARCHAR(255) NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			unit_price BIGINT NOT NULL,
			amount_paid BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			qr_key VARCHAR(255) NOT NULL,
			qr_url VARCHAR(1024) NOT NULL,
			checked_in {bool} NOT NULL DEFAULT FALSE,
			checked_in_at {ts} NULL,
			created_at {ts} NOT NULL`,
		indexes: []string{"idx_tickets_buyer (buyer_id, created_at)"},
	},
	{
		name: "transactions",
		columns: `id VARCHAR(64) PRIMARY KEY,
			ticket_id VARCHAR(64) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			buyer_id VARCHAR(128) NOT NULL,
			gateway VARCHAR(64) NOT NULL,
			payment_ref VARCHAR(128) NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(32) NOT NULL,
			reason TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at {ts} NOT NULL`,
		indexes: []string{"idx_transactions_ticket (ticket_id)"},
	},
	{
		name: "purchase_intents",
		columns: `id VARCHAR(64) PRIMARY KEY,
			ticket_id VARCHAR(64) NOT NULL UNIQUE,
			event_id VARCHAR(64) NOT NULL,
			category VARCHAR(255) NOT NULL,
			phase VARCHAR(255) NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			buyer_id VARCHAR(128) NOT NULL,
			payment_ref VARCHAR(128) NOT NULL,
			total BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL,
			detail TEXT NOT NULL,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL`,
		indexes: []string{"idx_intents_status (status, updated_at)"},
	},
}

// Statements returns the DDL that Migrate executes, in order.
func Statements(d Dialect) []string {
	ts, boolean := "DATETIME(6)", "BOOLEAN"
	if d == Postgres {
		ts = "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("{ts}", ts, "{bool}", boolean)

	var out []string
	for _, t := range tables {
		cols := r.Replace(t.columns)
		if d == MySQL {
			for _, ix := range t.indexes {
				cols += ",\n\t\t\tINDEX " + ix
			}
			out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t\t\t%s\n\t\t) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", t.name, cols))
			continue
		}
		out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t\t\t%s\n\t\t)", t.name, cols))
		for _, ix := range t.indexes {
			out = append(out, "CREATE INDEX IF NOT EXISTS "+ix[:strings.IndexByte(ix, ' ')]+" ON "+t.name+" "+ix[strings.IndexByte(ix, ' ')+1:])
		}
	}
	return out
}

// Migrate creates the schema if it does not exist yet.  It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range Statements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
