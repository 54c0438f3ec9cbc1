package ch

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"refbot/internal/models"
)

type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink creates a new ClickHouse connection for the ledger
// event log
func NewClickHouseSink(host string, port int, database, user, password string, useTLS bool) (*ClickHouseSink, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// Initialize creates the event log table. The sink owns its schema since
// goose migrations target the Postgres ledger store only.
func (db *ClickHouseSink) Initialize(ctx context.Context) error {
	err := db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_events (
			identity String,
			kind String,
			amount Int64,
			at DateTime
		) ENGINE = MergeTree()
		ORDER BY at
	`)
	if err != nil {
		return fmt.Errorf("failed to create ledger_events table: %w", err)
	}
	return nil
}

// RecordEvent appends one ledger event
func (db *ClickHouseSink) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	err := db.conn.Exec(ctx, `INSERT INTO ledger_events (identity, kind, amount, at) VALUES (?, ?, ?, ?)`,
		event.Identity, event.Kind, event.Amount, event.At)
	if err != nil {
		return fmt.Errorf("failed to record ledger event: %w", err)
	}
	return nil
}

// EventStats returns per-kind event counts and amount totals
func (db *ClickHouseSink) EventStats(ctx context.Context) ([]models.EventStat, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT kind, count() AS events, sum(amount) AS total
		 FROM ledger_events GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}
	defer rows.Close()

	var stats []models.EventStat
	for rows.Next() {
		var stat models.EventStat
		if err := rows.Scan(&stat.Kind, &stat.Count, &stat.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan event stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Close closes the database connection
func (db *ClickHouseSink) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
