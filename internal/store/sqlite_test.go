package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testFiling(symbol, filingID, hash string) models.Filing {
	return models.Filing{
		Symbol:   symbol,
		FilingID: filingID,
		Hash:     hash,
		Type:     models.FilingCurrent,
		Title:    "Current report",
		FiledAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		URL:      "https://www.sec.gov/Archives/edgar/data/320193/test.htm",
		Source:   models.SourceSEC,
	}
}

func TestUpsertFiling_ExactlyOnceAlert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := testFiling("AAPL", "0000320193-24-000001", "h1")
	wasNew, err := store.UpsertFiling(ctx, &f)
	if err != nil {
		t.Fatalf("UpsertFiling failed: %v", err)
	}
	if !wasNew {
		t.Fatal("first insert should be new")
	}
	if f.ID == 0 {
		t.Fatal("row id should be set after insert")
	}

	count, err := store.UnreadAlertCount(ctx)
	if err != nil {
		t.Fatalf("UnreadAlertCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread alert, got %d", count)
	}

	// Re-observing the same filing must not create a second alert.
	again := testFiling("AAPL", "0000320193-24-000001", "h1")
	wasNew, err = store.UpsertFiling(ctx, &again)
	if err != nil {
		t.Fatalf("second UpsertFiling failed: %v", err)
	}
	if wasNew {
		t.Fatal("re-observed filing reported as new")
	}

	count, _ = store.UnreadAlertCount(ctx)
	if count != 1 {
		t.Fatalf("expected alert count to stay 1, got %d", count)
	}
}

func TestUpsertFiling_AmendmentGetsOwnAlert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := testFiling("AAPL", "acc-1", "h1")
	if _, err := store.UpsertFiling(ctx, &original); err != nil {
		t.Fatalf("UpsertFiling failed: %v", err)
	}

	amended := testFiling("AAPL", "acc-1", "h2")
	wasNew, err := store.UpsertFiling(ctx, &amended)
	if err != nil {
		t.Fatalf("UpsertFiling of amendment failed: %v", err)
	}
	if !wasNew {
		t.Fatal("amendment with a new hash should be a new filing")
	}

	count, _ := store.UnreadAlertCount(ctx)
	if count != 2 {
		t.Fatalf("expected 2 alerts (original + amendment), got %d", count)
	}

	// Both rows must survive as distinct filings.
	known, err := store.KnownFilingKeys(ctx, "AAPL")
	if err != nil {
		t.Fatalf("KnownFilingKeys failed: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("expected 2 known keys, got %d", len(known))
	}
}

func TestUpsertTicker_EmptyFieldsPreserveExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	full := &models.Ticker{Symbol: "aapl", CIK: "0000320193", Name: "Apple Inc.", Exchange: "Nasdaq", Watched: true}
	if err := store.UpsertTicker(ctx, full); err != nil {
		t.Fatalf("UpsertTicker failed: %v", err)
	}
	if full.Symbol != "AAPL" {
		t.Errorf("symbol not normalized: %s", full.Symbol)
	}

	// Re-add with empty CIK and name; existing values must win.
	bare := &models.Ticker{Symbol: "AAPL", Watched: true}
	if err := store.UpsertTicker(ctx, bare); err != nil {
		t.Fatalf("second UpsertTicker failed: %v", err)
	}

	got, err := store.GetTicker(ctx, "aapl")
	if err != nil {
		t.Fatalf("GetTicker failed: %v", err)
	}
	if got.CIK != "0000320193" || got.Name != "Apple Inc." {
		t.Errorf("empty upsert clobbered existing fields: %+v", got)
	}
}

func TestGetTicker_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTicker(context.Background(), "NOPE")
	if !apperrors.Is(err, apperrors.ErrTickerNotFound) {
		t.Fatalf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestRemoveTicker_KeepsFilingsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertTicker(ctx, &models.Ticker{Symbol: "AAPL", CIK: "320193", Watched: true}); err != nil {
		t.Fatalf("UpsertTicker failed: %v", err)
	}
	f := testFiling("AAPL", "acc-1", "h1")
	if _, err := store.UpsertFiling(ctx, &f); err != nil {
		t.Fatalf("UpsertFiling failed: %v", err)
	}
	st := &models.PollState{Symbol: "AAPL", LastOutcome: models.OutcomeSuccess}
	if err := store.SavePollState(ctx, st); err != nil {
		t.Fatalf("SavePollState failed: %v", err)
	}

	if err := store.RemoveTicker(ctx, "AAPL"); err != nil {
		t.Fatalf("RemoveTicker failed: %v", err)
	}

	if _, err := store.GetTicker(ctx, "AAPL"); !apperrors.Is(err, apperrors.ErrTickerNotFound) {
		t.Fatal("ticker row should be gone")
	}
	states, _ := store.LoadPollStates(ctx)
	if _, ok := states["AAPL"]; ok {
		t.Fatal("poll state should be gone")
	}

	filings, err := store.ListFilings(ctx, FilingFilter{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("ListFilings failed: %v", err)
	}
	if len(filings) != 1 {
		t.Fatalf("filings history should survive removal, got %d rows", len(filings))
	}

	if err := store.RemoveTicker(ctx, "AAPL"); !apperrors.Is(err, apperrors.ErrTickerNotFound) {
		t.Fatalf("second remove should report not found, got %v", err)
	}
}

func TestSetWatched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertTicker(ctx, &models.Ticker{Symbol: "MSFT", CIK: "789019", Watched: true}); err != nil {
		t.Fatalf("UpsertTicker failed: %v", err)
	}
	if err := store.SetWatched(ctx, "MSFT", false); err != nil {
		t.Fatalf("SetWatched failed: %v", err)
	}

	watched, err := store.ListTickers(ctx, true)
	if err != nil {
		t.Fatalf("ListTickers failed: %v", err)
	}
	if len(watched) != 0 {
		t.Fatalf("unwatched ticker still listed as watched")
	}
	all, _ := store.ListTickers(ctx, false)
	if len(all) != 1 {
		t.Fatalf("ticker should still exist, got %d rows", len(all))
	}

	if err := store.SetWatched(ctx, "NOPE", true); !apperrors.Is(err, apperrors.ErrTickerNotFound) {
		t.Fatalf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestSearchTickers_ExactSymbolFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []models.Ticker{
		{Symbol: "GOOG", CIK: "1652044", Name: "Alphabet Inc."},
		{Symbol: "GO", CIK: "1771515", Name: "Grocery Outlet"},
		{Symbol: "GOL", CIK: "1291733", Name: "Gol Linhas"},
		{Symbol: "XGO", CIK: "9999999", Name: "Gold Fund GO"},
	}
	if _, err := store.BulkUpsertTickers(ctx, seed); err != nil {
		t.Fatalf("BulkUpsertTickers failed: %v", err)
	}

	matches, err := store.SearchTickers(ctx, "go", 10)
	if err != nil {
		t.Fatalf("SearchTickers failed: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(matches))
	}
	if matches[0].Symbol != "GO" {
		t.Errorf("exact symbol match should rank first, got %s", matches[0].Symbol)
	}
	// Prefix matches before substring-only matches.
	for i, m := range matches[:3] {
		if m.Symbol[0] != 'G' {
			t.Errorf("prefix match expected at rank %d, got %s", i, m.Symbol)
		}
	}
}

func TestBulkUpsertTickers_PreservesWatchlist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// User adds a ticker before importing the symbol table, without a CIK.
	if err := store.UpsertTicker(ctx, &models.Ticker{Symbol: "AAPL", Tags: "tech", Watched: true}); err != nil {
		t.Fatalf("UpsertTicker failed: %v", err)
	}

	n, err := store.BulkUpsertTickers(ctx, []models.Ticker{
		{Symbol: "AAPL", CIK: "0000320193", Name: "Apple Inc.", Exchange: "Nasdaq"},
		{Symbol: "MSFT", CIK: "0000789019", Name: "Microsoft Corp", Exchange: "Nasdaq"},
		{Symbol: "  ", CIK: "ignored"},
	})
	if err != nil {
		t.Fatalf("BulkUpsertTickers failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written, got %d", n)
	}

	aapl, err := store.GetTicker(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetTicker failed: %v", err)
	}
	if !aapl.Watched {
		t.Error("import cleared the watched flag")
	}
	if aapl.Tags != "tech" {
		t.Errorf("import clobbered tags: %q", aapl.Tags)
	}
	if aapl.CIK != "0000320193" {
		t.Errorf("import should fill in the missing CIK, got %q", aapl.CIK)
	}

	msft, _ := store.GetTicker(ctx, "MSFT")
	if msft.Watched {
		t.Error("imported-only ticker should not be watched")
	}
}

func TestListFilings_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testFiling("AAPL", "acc-1", "h1")
	older.Type = models.FilingAnnual
	older.FiledAt = time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC)
	newer := testFiling("AAPL", "acc-2", "h2")
	newer.FiledAt = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	other := testFiling("MSFT", "acc-3", "h3")
	other.FiledAt = time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)
	for _, f := range []*models.Filing{&older, &newer, &other} {
		if _, err := store.UpsertFiling(ctx, f); err != nil {
			t.Fatalf("UpsertFiling failed: %v", err)
		}
	}

	bySymbol, err := store.ListFilings(ctx, FilingFilter{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("ListFilings failed: %v", err)
	}
	if len(bySymbol) != 2 {
		t.Fatalf("expected 2 AAPL filings, got %d", len(bySymbol))
	}
	if bySymbol[0].FilingID != "acc-2" {
		t.Errorf("expected most recent first, got %s", bySymbol[0].FilingID)
	}

	byType, _ := store.ListFilings(ctx, FilingFilter{Type: models.FilingAnnual})
	if len(byType) != 1 || byType[0].FilingID != "acc-1" {
		t.Errorf("type filter wrong: %+v", byType)
	}

	since, _ := store.ListFilings(ctx, FilingFilter{Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	if len(since) != 2 {
		t.Errorf("expected 2 filings since 2024, got %d", len(since))
	}

	if err := store.MarkFilingRead(ctx, newer.ID); err != nil {
		t.Fatalf("MarkFilingRead failed: %v", err)
	}
	unread, _ := store.ListFilings(ctx, FilingFilter{Symbol: "AAPL", UnreadOnly: true})
	if len(unread) != 1 || unread[0].FilingID != "acc-1" {
		t.Errorf("unread filter wrong: %+v", unread)
	}

	limited, _ := store.ListFilings(ctx, FilingFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d rows", len(limited))
	}
}

func TestAlerts_ReadLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"acc-1", "acc-2", "acc-3"} {
		f := testFiling("AAPL", id, "h")
		f.FiledAt = f.FiledAt.AddDate(0, 0, i)
		if _, err := store.UpsertFiling(ctx, &f); err != nil {
			t.Fatalf("UpsertFiling failed: %v", err)
		}
	}

	alerts, err := store.ListAlerts(ctx, true, 0)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("expected 3 unread alerts, got %d", len(alerts))
	}
	if alerts[0].Symbol != "AAPL" || alerts[0].FilingID == "" {
		t.Errorf("alert rows should be joined with filings: %+v", alerts[0])
	}

	if err := store.MarkAlertRead(ctx, alerts[0].ID); err != nil {
		t.Fatalf("MarkAlertRead failed: %v", err)
	}
	count, _ := store.UnreadAlertCount(ctx)
	if count != 2 {
		t.Fatalf("expected 2 unread after one read, got %d", count)
	}

	if err := store.MarkAlertRead(ctx, 99999); err == nil {
		t.Fatal("marking a missing alert read should error")
	}

	n, err := store.MarkAllAlertsRead(ctx)
	if err != nil {
		t.Fatalf("MarkAllAlertsRead failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 alerts marked, got %d", n)
	}
	count, _ = store.UnreadAlertCount(ctx)
	if count != 0 {
		t.Fatalf("expected inbox zero, got %d", count)
	}
}

func TestPollState_RoundTripAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restart.db")
	ctx := context.Background()

	store1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	saved := &models.PollState{
		Symbol:              "AAPL",
		LastAttempt:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		LastOutcome:         models.OutcomeRateLimited,
		ConsecutiveFailures: 3,
		NextEligible:        time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC),
		LastError:           "registry throttled the request",
	}
	if err := store1.SavePollState(ctx, saved); err != nil {
		t.Fatalf("SavePollState failed: %v", err)
	}
	store1.Close()

	// Reopen, as a process restart would.
	store2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store2.Close()

	states, err := store2.LoadPollStates(ctx)
	if err != nil {
		t.Fatalf("LoadPollStates failed: %v", err)
	}
	got, ok := states["AAPL"]
	if !ok {
		t.Fatal("poll state missing after restart")
	}
	if got.LastOutcome != models.OutcomeRateLimited {
		t.Errorf("outcome = %s, want RATE_LIMITED", got.LastOutcome)
	}
	if got.ConsecutiveFailures != 3 {
		t.Errorf("failures = %d, want 3", got.ConsecutiveFailures)
	}
	if !got.NextEligible.Equal(saved.NextEligible) {
		t.Errorf("next eligible = %s, want %s", got.NextEligible, saved.NextEligible)
	}
	if got.LastError != saved.LastError {
		t.Errorf("last error = %q, want %q", got.LastError, saved.LastError)
	}
}

func TestNotes_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	note := &models.Note{Symbol: "aapl", Title: "Q2 earnings", Content: "Watch services revenue", Attachment: "https://example.com/memo.pdf"}
	if err := store.SaveNote(ctx, note); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}
	if note.ID == 0 {
		t.Fatal("note id should be set")
	}

	notes, err := store.ListNotes(ctx, "AAPL", 0)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Content != note.Content || notes[0].Attachment != note.Attachment {
		t.Errorf("note round-trip mismatch: %+v", notes[0])
	}

	if err := store.DeleteNote(ctx, note.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	notes, _ = store.ListNotes(ctx, "AAPL", 0)
	if len(notes) != 0 {
		t.Fatalf("note should be deleted, got %d", len(notes))
	}
}
