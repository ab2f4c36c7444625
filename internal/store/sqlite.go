// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/models"
)

// SQLiteStore implements FilingStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based filing store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent poll workers
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Tracked tickers
	CREATE TABLE IF NOT EXISTS tickers (
		symbol TEXT PRIMARY KEY,
		cik TEXT,
		exchange TEXT,
		name TEXT,
		tags TEXT,
		watched INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Observed filings. (symbol, filing_id, hash) is the dedup identity:
	-- an amended filing reusing an id arrives with a new hash and becomes
	-- a distinct row.
	CREATE TABLE IF NOT EXISTS filings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		filing_id TEXT NOT NULL,
		hash TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT,
		filed_at DATETIME NOT NULL,
		url TEXT,
		source TEXT NOT NULL DEFAULT 'sec',
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, filing_id, hash)
	);

	-- Alerts. The UNIQUE constraint on filing row id is the durable form
	-- of the exactly-once guarantee.
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filing_row_id INTEGER NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		read INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (filing_row_id) REFERENCES filings(id)
	);

	-- Scheduler state, persisted so restart keeps backoff
	CREATE TABLE IF NOT EXISTS poll_state (
		symbol TEXT PRIMARY KEY,
		last_attempt DATETIME,
		last_outcome TEXT,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		next_eligible DATETIME,
		last_error TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- User research notes
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		attachment TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_filings_symbol ON filings(symbol);
	CREATE INDEX IF NOT EXISTS idx_filings_filed_at ON filings(filed_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_read ON alerts(read);
	CREATE INDEX IF NOT EXISTS idx_notes_symbol ON notes(symbol);
	CREATE INDEX IF NOT EXISTS idx_tickers_cik ON tickers(cik);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Ticker Methods
// ============================================================================

// UpsertTicker inserts or updates a ticker keyed on symbol.
func (s *SQLiteStore) UpsertTicker(ctx context.Context, ticker *models.Ticker) error {
	symbol := strings.ToUpper(ticker.Symbol)
	watched := 0
	if ticker.Watched {
		watched = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickers (symbol, cik, exchange, name, tags, watched)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			cik = CASE WHEN excluded.cik != '' THEN excluded.cik ELSE tickers.cik END,
			exchange = CASE WHEN excluded.exchange != '' THEN excluded.exchange ELSE tickers.exchange END,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE tickers.name END,
			tags = CASE WHEN excluded.tags != '' THEN excluded.tags ELSE tickers.tags END,
			watched = excluded.watched
	`, symbol, ticker.CIK, ticker.Exchange, ticker.Name, ticker.Tags, watched)
	if err != nil {
		return apperrors.NewStoreError("upsert_ticker", symbol, err)
	}
	ticker.Symbol = symbol
	return nil
}

// GetTicker retrieves a ticker by symbol.
func (s *SQLiteStore) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, COALESCE(cik, ''), COALESCE(exchange, ''), COALESCE(name, ''), COALESCE(tags, ''), watched, created_at
		FROM tickers WHERE symbol = ?
	`, strings.ToUpper(symbol))

	t, err := scanTicker(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTickerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}
	return t, nil
}

// ListTickers retrieves tickers ordered by symbol.
func (s *SQLiteStore) ListTickers(ctx context.Context, watchedOnly bool) ([]models.Ticker, error) {
	query := `
		SELECT symbol, COALESCE(cik, ''), COALESCE(exchange, ''), COALESCE(name, ''), COALESCE(tags, ''), watched, created_at
		FROM tickers`
	if watchedOnly {
		query += " WHERE watched = 1"
	}
	query += " ORDER BY symbol"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []models.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, *t)
	}
	return tickers, rows.Err()
}

// SetWatched toggles the watch status of a ticker.
func (s *SQLiteStore) SetWatched(ctx context.Context, symbol string, watched bool) error {
	w := 0
	if watched {
		w = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tickers SET watched = ? WHERE symbol = ?`, w, strings.ToUpper(symbol))
	if err != nil {
		return apperrors.NewStoreError("set_watched", symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTickerNotFound
	}
	return nil
}

// RemoveTicker deletes a ticker. Filings and alerts are kept; history
// survives an accidental remove-and-re-add.
func (s *SQLiteStore) RemoveTicker(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickers WHERE symbol = ?`, symbol)
	if err != nil {
		return apperrors.NewStoreError("remove_ticker", symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTickerNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM poll_state WHERE symbol = ?`, symbol)
	if err != nil {
		return apperrors.NewStoreError("remove_ticker", symbol, err)
	}
	return nil
}

// SearchTickers searches by symbol, name, or CIK, exact and prefix
// symbol matches first.
func (s *SQLiteStore) SearchTickers(ctx context.Context, query string, limit int) ([]models.Ticker, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	like := "%" + q + "%"
	prefix := q + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COALESCE(cik, ''), COALESCE(exchange, ''), COALESCE(name, ''), COALESCE(tags, ''), watched, created_at
		FROM tickers
		WHERE lower(symbol) LIKE ? OR lower(name) LIKE ? OR lower(cik) LIKE ?
		ORDER BY
			(lower(symbol) != ?),
			(lower(symbol) NOT LIKE ?),
			symbol
		LIMIT ?
	`, like, like, like, q, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tickers: %w", err)
	}
	defer rows.Close()

	var tickers []models.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, *t)
	}
	return tickers, rows.Err()
}

// BulkUpsertTickers imports a batch of tickers in a single transaction,
// returning the number of rows written. Existing values win over empty
// incoming fields.
func (s *SQLiteStore) BulkUpsertTickers(ctx context.Context, tickers []models.Ticker) (int, error) {
	if len(tickers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreError("bulk_upsert_tickers", "", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tickers (symbol, cik, exchange, name, tags, watched)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(symbol) DO UPDATE SET
			cik = CASE WHEN excluded.cik != '' THEN excluded.cik ELSE tickers.cik END,
			exchange = CASE WHEN excluded.exchange != '' THEN excluded.exchange ELSE tickers.exchange END,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE tickers.name END
	`)
	if err != nil {
		return 0, apperrors.NewStoreError("bulk_upsert_tickers", "", err)
	}
	defer stmt.Close()

	count := 0
	for _, t := range tickers {
		symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if symbol == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, symbol, t.CIK, t.Exchange, t.Name, t.Tags); err != nil {
			return 0, apperrors.NewStoreError("bulk_upsert_tickers", symbol, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError("bulk_upsert_tickers", "", err)
	}
	return count, nil
}

// ============================================================================
// Filing Methods
// ============================================================================

// UpsertFiling inserts a filing and its alert in one transaction. The
// alert insert happens iff the filing row is new, so a crash can never
// leave a persisted filing whose alert is silently missing, and a
// re-observed filing can never produce a second alert.
func (s *SQLiteStore) UpsertFiling(ctx context.Context, filing *models.Filing) (bool, error) {
	symbol := strings.ToUpper(filing.Symbol)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.NewStoreError("upsert_filing", symbol, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO filings (symbol, filing_id, hash, type, title, filed_at, url, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, symbol, filing.FilingID, filing.Hash, string(filing.Type), filing.Title, filing.FiledAt, filing.URL, string(filing.Source))
	if err != nil {
		return false, apperrors.NewStoreError("upsert_filing", symbol, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreError("upsert_filing", symbol, err)
	}
	if inserted == 0 {
		// Already known. Nothing to write.
		return false, tx.Commit()
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return false, apperrors.NewStoreError("upsert_filing", symbol, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO alerts (filing_row_id, read) VALUES (?, 0)
	`, rowID); err != nil {
		return false, apperrors.NewStoreError("create_alert", symbol, err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewStoreError("upsert_filing", symbol, err)
	}

	filing.ID = rowID
	filing.Symbol = symbol
	return true, nil
}

// KnownFilingKeys returns the set of (filing_id, hash) pairs already
// stored for a ticker.
func (s *SQLiteStore) KnownFilingKeys(ctx context.Context, symbol string) (map[models.FilingKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filing_id, hash FROM filings WHERE symbol = ?
	`, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query filing keys: %w", err)
	}
	defer rows.Close()

	known := make(map[models.FilingKey]struct{})
	for rows.Next() {
		var key models.FilingKey
		if err := rows.Scan(&key.FilingID, &key.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan filing key: %w", err)
		}
		known[key] = struct{}{}
	}
	return known, rows.Err()
}

// ListFilings retrieves filings most-recent-first.
func (s *SQLiteStore) ListFilings(ctx context.Context, filter FilingFilter) ([]models.Filing, error) {
	query := `
		SELECT id, symbol, filing_id, hash, type, COALESCE(title, ''), filed_at, COALESCE(url, ''), source, read, created_at
		FROM filings WHERE 1=1`
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		query += " AND filed_at >= ?"
		args = append(args, filter.Since)
	}
	if filter.UnreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY filed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filings: %w", err)
	}
	defer rows.Close()

	var filings []models.Filing
	for rows.Next() {
		var f models.Filing
		var read int
		if err := rows.Scan(&f.ID, &f.Symbol, &f.FilingID, &f.Hash, &f.Type, &f.Title, &f.FiledAt, &f.URL, &f.Source, &read, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		f.Read = read != 0
		filings = append(filings, f)
	}
	return filings, rows.Err()
}

// GetFiling retrieves a filing by store row id.
func (s *SQLiteStore) GetFiling(ctx context.Context, rowID int64) (*models.Filing, error) {
	var f models.Filing
	var read int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, filing_id, hash, type, COALESCE(title, ''), filed_at, COALESCE(url, ''), source, read, created_at
		FROM filings WHERE id = ?
	`, rowID).Scan(&f.ID, &f.Symbol, &f.FilingID, &f.Hash, &f.Type, &f.Title, &f.FiledAt, &f.URL, &f.Source, &read, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("filing %d not found", rowID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filing: %w", err)
	}
	f.Read = read != 0
	return &f, nil
}

// MarkFilingRead marks a filing as read.
func (s *SQLiteStore) MarkFilingRead(ctx context.Context, rowID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE filings SET read = 1 WHERE id = ?`, rowID)
	if err != nil {
		return apperrors.NewStoreError("mark_filing_read", "", err)
	}
	return nil
}

// ============================================================================
// Alert Methods
// ============================================================================

// ListAlerts retrieves alerts most-recent-first, joined with their
// filings for display.
func (s *SQLiteStore) ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	query := `
		SELECT a.id, a.filing_row_id, a.created_at, a.read,
		       f.symbol, f.filing_id, COALESCE(f.title, ''), f.type
		FROM alerts a
		JOIN filings f ON f.id = a.filing_row_id`
	if unreadOnly {
		query += " WHERE a.read = 0"
	}
	query += " ORDER BY a.created_at DESC, a.id DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var read int
		if err := rows.Scan(&a.ID, &a.FilingRowID, &a.CreatedAt, &read, &a.Symbol, &a.FilingID, &a.Title, &a.Type); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Read = read != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UnreadAlertCount returns the number of unread alerts.
func (s *SQLiteStore) UnreadAlertCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return count, nil
}

// MarkAlertRead marks a single alert as read.
func (s *SQLiteStore) MarkAlertRead(ctx context.Context, alertID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET read = 1 WHERE id = ?`, alertID)
	if err != nil {
		return apperrors.NewStoreError("mark_alert_read", "", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d not found", alertID)
	}
	return nil
}

// MarkAllAlertsRead marks every unread alert as read, returning the count.
func (s *SQLiteStore) MarkAllAlertsRead(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET read = 1 WHERE read = 0`)
	if err != nil {
		return 0, apperrors.NewStoreError("mark_all_alerts_read", "", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ============================================================================
// Poll State Methods
// ============================================================================

// SavePollState persists the scheduler state for a ticker.
func (s *SQLiteStore) SavePollState(ctx context.Context, state *models.PollState) error {
	symbol := strings.ToUpper(state.Symbol)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_state (symbol, last_attempt, last_outcome, consecutive_failures, next_eligible, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			last_attempt = excluded.last_attempt,
			last_outcome = excluded.last_outcome,
			consecutive_failures = excluded.consecutive_failures,
			next_eligible = excluded.next_eligible,
			last_error = excluded.last_error,
			updated_at = CURRENT_TIMESTAMP
	`, symbol, state.LastAttempt, string(state.LastOutcome), state.ConsecutiveFailures, state.NextEligible, state.LastError)
	if err != nil {
		return apperrors.NewStoreError("save_poll_state", symbol, err)
	}
	return nil
}

// LoadPollStates retrieves all persisted scheduler state.
func (s *SQLiteStore) LoadPollStates(ctx context.Context) (map[string]models.PollState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, last_attempt, last_outcome, consecutive_failures, next_eligible, COALESCE(last_error, '')
		FROM poll_state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll state: %w", err)
	}
	defer rows.Close()

	states := make(map[string]models.PollState)
	for rows.Next() {
		var st models.PollState
		var lastAttempt, nextEligible sql.NullTime
		var outcome string
		if err := rows.Scan(&st.Symbol, &lastAttempt, &outcome, &st.ConsecutiveFailures, &nextEligible, &st.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan poll state: %w", err)
		}
		if lastAttempt.Valid {
			st.LastAttempt = lastAttempt.Time
		}
		if nextEligible.Valid {
			st.NextEligible = nextEligible.Time
		}
		st.LastOutcome = models.PollOutcome(outcome)
		states[st.Symbol] = st
	}
	return states, rows.Err()
}

// ============================================================================
// Note Methods
// ============================================================================

// SaveNote saves a research note.
func (s *SQLiteStore) SaveNote(ctx context.Context, note *models.Note) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (symbol, title, content, attachment)
		VALUES (?, ?, ?, ?)
	`, strings.ToUpper(note.Symbol), note.Title, note.Content, note.Attachment)
	if err != nil {
		return apperrors.NewStoreError("save_note", note.Symbol, err)
	}
	note.ID, _ = res.LastInsertId()
	return nil
}

// ListNotes retrieves notes for a ticker, newest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, symbol string, limit int) ([]models.Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, title, COALESCE(content, ''), COALESCE(attachment, ''), created_at
		FROM notes WHERE symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Symbol, &n.Title, &n.Content, &n.Attachment, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note by id.
func (s *SQLiteStore) DeleteNote(ctx context.Context, noteID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID)
	if err != nil {
		return apperrors.NewStoreError("delete_note", "", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicker(row scanner) (*models.Ticker, error) {
	var t models.Ticker
	var watched int
	if err := row.Scan(&t.Symbol, &t.CIK, &t.Exchange, &t.Name, &t.Tags, &watched, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Watched = watched != 0
	return &t, nil
}
