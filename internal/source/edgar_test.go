package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"edgar-tracker/internal/config"
	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/models"
)

const submissionsFixture = `{
	"cik": "320193",
	"name": "Apple Inc.",
	"filings": {
		"recent": {
			"accessionNumber": ["0000320193-24-000069", "0000320193-24-000068", "0000320193-24-000010", ""],
			"filingDate": ["2024-05-03", "2024-05-02", "not-a-date", "2024-01-01"],
			"form": ["10-Q", "8-K", "4", "8-K"],
			"primaryDocument": ["aapl-20240330.htm", "earnings8k.htm", "xslF345X05/form4.xml", "x.htm"],
			"primaryDocDescription": ["10-Q", "", "", ""]
		}
	}
}`

func newTestSource(t *testing.T, handler http.Handler) (*EdgarSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.SourceConfig{
		UserAgent:        "edgar-tracker-test test@example.com",
		FilingsPerTicker: 50,
		ThrottleDelay:    0,
		Timeout:          5 * time.Second,
		CacheDir:         filepath.Join(t.TempDir(), "cache"),
	}
	src := NewEdgarSource(cfg, NewThrottle(0), zerolog.Nop())
	src.submissionsBase = server.URL
	src.archivesBase = server.URL
	return src, server
}

func TestListFilings_ParsesSubmissions(t *testing.T) {
	var gotPath, gotAgent string
	src, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, submissionsFixture)
	}))

	filings, err := src.ListFilings(context.Background(), models.Ticker{Symbol: "AAPL", CIK: "320193"})
	if err != nil {
		t.Fatalf("ListFilings failed: %v", err)
	}

	if gotPath != "/submissions/CIK0000320193.json" {
		t.Errorf("request path = %s, want zero-padded CIK path", gotPath)
	}
	if gotAgent != "edgar-tracker-test test@example.com" {
		t.Errorf("user agent not sent, got %q", gotAgent)
	}

	// The bad-date entry and the empty accession are skipped.
	if len(filings) != 2 {
		t.Fatalf("expected 2 filings, got %d", len(filings))
	}

	f := filings[0]
	if f.FilingID != "0000320193-24-000069" {
		t.Errorf("filing id = %s", f.FilingID)
	}
	if f.Type != models.FilingQuarterly {
		t.Errorf("type = %s, want 10-Q", f.Type)
	}
	if !f.FiledAt.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filed at = %s", f.FiledAt)
	}
	if f.Symbol != "AAPL" || f.Source != models.SourceSEC {
		t.Errorf("identity fields wrong: %+v", f)
	}
	wantURL := src.archivesBase + "/Archives/edgar/data/320193/000032019324000069/aapl-20240330.htm"
	if f.URL != wantURL {
		t.Errorf("url = %s, want %s", f.URL, wantURL)
	}

	// Missing description falls back to a generated title.
	if filings[1].Title != "8-K filing of 2024-05-02" {
		t.Errorf("fallback title = %q", filings[1].Title)
	}
}

func TestListFilings_RespectsLimit(t *testing.T) {
	src, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsFixture)
	}))
	src.limit = 1

	filings, err := src.ListFilings(context.Background(), models.Ticker{Symbol: "AAPL", CIK: "320193"})
	if err != nil {
		t.Fatalf("ListFilings failed: %v", err)
	}
	if len(filings) != 1 {
		t.Fatalf("expected limit of 1 filing, got %d", len(filings))
	}
}

func TestListFilings_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, apperrors.ErrSourceRateLimited},
		{http.StatusForbidden, apperrors.ErrSourceRateLimited},
		{http.StatusNotFound, apperrors.ErrSourceNotFound},
		{http.StatusInternalServerError, apperrors.ErrSourceUnavailable},
		{http.StatusBadGateway, apperrors.ErrSourceUnavailable},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("status_%d", c.status), func(t *testing.T) {
			src, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
			}))
			_, err := src.ListFilings(context.Background(), models.Ticker{Symbol: "AAPL", CIK: "320193"})
			if !apperrors.Is(err, c.want) {
				t.Errorf("status %d mapped to %v, want %v", c.status, err, c.want)
			}
		})
	}
}

func TestListFilings_MalformedJSON(t *testing.T) {
	src, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance page</html>")
	}))
	_, err := src.ListFilings(context.Background(), models.Ticker{Symbol: "AAPL", CIK: "320193"})
	if !apperrors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("malformed body should map to unavailable, got %v", err)
	}
}

func TestListFilings_NoCIK(t *testing.T) {
	src, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request issued for a ticker with no CIK")
	}))
	_, err := src.ListFilings(context.Background(), models.Ticker{Symbol: "NEWCO"})
	if !apperrors.Is(err, apperrors.ErrSourceNotFound) {
		t.Fatalf("expected not-found for missing CIK, got %v", err)
	}
}

func TestFetchDocument_UsesCache(t *testing.T) {
	hits := 0
	src, server := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "document body")
	}))

	filing := models.Filing{
		FilingID: "0000320193-24-000069",
		URL:      server.URL + "/Archives/edgar/data/320193/doc.htm",
	}

	ctx := context.Background()
	first, err := src.FetchDocument(ctx, filing)
	if err != nil {
		t.Fatalf("FetchDocument failed: %v", err)
	}
	second, err := src.FetchDocument(ctx, filing)
	if err != nil {
		t.Fatalf("cached FetchDocument failed: %v", err)
	}

	if string(first) != "document body" || string(second) != "document body" {
		t.Errorf("document bodies wrong: %q / %q", first, second)
	}
	if hits != 1 {
		t.Errorf("expected 1 network hit, got %d", hits)
	}
}

func TestContentHash_DistinguishesAmendments(t *testing.T) {
	original := contentHash("0000320193-24-000069", "2024-05-03", "aapl.htm")
	sameInputs := contentHash("0000320193-24-000069", "2024-05-03", "aapl.htm")
	newDoc := contentHash("0000320193-24-000069", "2024-05-03", "aapl-amended.htm")
	newDate := contentHash("0000320193-24-000069", "2024-05-10", "aapl.htm")

	if original != sameInputs {
		t.Error("hash is not deterministic")
	}
	if original == newDoc || original == newDate {
		t.Error("amended content should hash differently")
	}
}

func TestPadCIK(t *testing.T) {
	cases := map[string]string{
		"320193":      "0000320193",
		"0000320193":  "0000320193",
		" 320193 ":    "0000320193",
		"1":           "0000000001",
		"12345678901": "12345678901",
	}
	for in, want := range cases {
		if got := padCIK(in); got != want {
			t.Errorf("padCIK(%q) = %q, want %q", in, got, want)
		}
	}
}
