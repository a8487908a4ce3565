// Package storage defines the Store port (spec.md §4.8) and its two
// adapters: a PostgreSQL-backed DB (entities.go, relationships.go, audit.go,
// embeddings.go, patterns.go) and an in-memory adapter for fast tests
// (storage/memstore).
//
// The PostgreSQL adapter manages connection pooling via pgxpool and a
// dedicated connection for LISTEN/NOTIFY, direct to Postgres.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// ChannelConsolidations is the LISTEN/NOTIFY channel a downstream sync
// consumer can subscribe to for consolidation-completed events (SPEC_FULL.md
// supplemented feature), adapted from the teacher's conflict/decision
// notification channels.
const ChannelConsolidations = "consolida_events"

// DB wraps a pgxpool.Pool for normal queries and a dedicated pgx.Conn for
// LISTEN/NOTIFY, implementing storage.Store over PostgreSQL + pgvector.
type DB struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	notifyDSN  string
	notifyMu   sync.Mutex
	// listenChannels tracks subscribed channels so they can be re-established
	// after a reconnect.
	listenChannels []string
	logger         *slog.Logger
}

// New creates a new DB with a connection pool. notifyDSN may be empty, in
// which case LISTEN/NOTIFY support is disabled.
func New(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}

	// Register pgvector types on each new connection so queries can encode
	// vectors. Best-effort: if the vector extension hasn't been created yet
	// (e.g. during initial pool startup before migrations), log and proceed.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("storage: pgvector types not registered (extension may not exist yet)", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}

	return &DB{
		pool:       pool,
		notifyConn: notifyConn,
		notifyDSN:  notifyDSN,
		logger:     logger,
	}, nil
}

// Pool returns the underlying connection pool for use by other packages.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool and notify connection.
func (db *DB) Close(ctx context.Context) {
	db.pool.Close()
	db.notifyMu.Lock()
	defer db.notifyMu.Unlock()
	if db.notifyConn != nil {
		if err := db.notifyConn.Close(ctx); err != nil {
			db.logger.Warn("storage: close notify connection", "error", err)
		}
	}
}

// Notify publishes payload on ChannelConsolidations.
func (db *DB) Notify(ctx context.Context, payload string) error {
	_, err := db.pool.Exec(ctx, "SELECT pg_notify($1, $2)", ChannelConsolidations, payload)
	if err != nil {
		return fmt.Errorf("storage: notify: %w", err)
	}
	return nil
}

// Listen subscribes the dedicated notify connection to ChannelConsolidations.
func (db *DB) Listen(ctx context.Context) error {
	db.notifyMu.Lock()
	defer db.notifyMu.Unlock()
	if db.notifyConn == nil {
		return fmt.Errorf("storage: notify connection not configured")
	}
	if _, err := db.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{ChannelConsolidations}.Sanitize()); err != nil {
		return fmt.Errorf("storage: listen: %w", err)
	}
	db.listenChannels = appendChannel(db.listenChannels, ChannelConsolidations)
	return nil
}

// WaitForNotification blocks until a notification arrives on a subscribed
// channel, transparently reconnecting (with backoff) if the dedicated
// connection drops.
func (db *DB) WaitForNotification(ctx context.Context) (payload string, err error) {
	db.notifyMu.Lock()
	conn := db.notifyConn
	db.notifyMu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("storage: notify connection not configured")
	}

	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		db.logger.Warn("storage: notify connection lost, reconnecting", "error", err)
		if rerr := db.reconnectNotify(ctx); rerr != nil {
			return "", fmt.Errorf("storage: wait for notification: %w", rerr)
		}
		return "", fmt.Errorf("storage: notify connection reset, retry")
	}
	return n.Payload, nil
}

func appendChannel(channels []string, ch string) []string {
	for _, c := range channels {
		if c == ch {
			return channels
		}
	}
	return append(channels, ch)
}

// reconnectNotify attempts to re-establish the dedicated LISTEN/NOTIFY
// connection with exponential backoff and jitter. It re-subscribes to all
// previously tracked channels on success.
func (db *DB) reconnectNotify(ctx context.Context) error {
	if db.notifyDSN == "" {
		return fmt.Errorf("storage: no notify DSN configured")
	}

	db.notifyMu.Lock()
	defer db.notifyMu.Unlock()

	if db.notifyConn != nil {
		_ = db.notifyConn.Close(ctx)
		db.notifyConn = nil
	}

	const maxRetries = 5
	var lastErr error
	backoffDelay := 500 * time.Millisecond

	for attempt := range maxRetries {
		if attempt > 0 {
			jitter := time.Duration(rand.Int64N(int64(backoffDelay / 2))) //nolint:gosec // jitter doesn't need crypto-strength randomness
			sleep := backoffDelay + jitter

			db.logger.Info("storage: reconnecting notify", "attempt", attempt+1, "backoff", sleep)

			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoffDelay *= 2
		}

		conn, err := pgx.Connect(ctx, db.notifyDSN)
		if err != nil {
			lastErr = err
			db.logger.Warn("storage: notify reconnect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		resubOK := true
		for _, ch := range db.listenChannels {
			if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
				_ = conn.Close(ctx)
				lastErr = err
				db.logger.Warn("storage: re-listen failed during reconnect", "channel", ch, "error", err)
				resubOK = false
				break
			}
		}
		if !resubOK {
			continue
		}

		db.notifyConn = conn
		db.logger.Info("storage: notify connection restored", "attempt", attempt+1, "channels", db.listenChannels)
		return nil
	}

	return fmt.Errorf("storage: notify reconnect failed after %d attempts: %w", maxRetries, lastErr)
}
