package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"edgar-tracker/internal/config"
	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/logging"
	"edgar-tracker/internal/models"
)

const (
	defaultSubmissionsBase = "https://data.sec.gov"
	defaultArchivesBase    = "https://www.sec.gov"
)

// EdgarSource implements Source against the SEC EDGAR submissions API.
type EdgarSource struct {
	client    *http.Client
	userAgent string
	limit     int
	throttle  *Throttle
	cache     *DocumentCache
	logger    zerolog.Logger

	// Overridable for tests.
	submissionsBase string
	archivesBase    string
}

// NewEdgarSource creates a new EDGAR adapter. The throttle is shared
// state injected by the caller so that every worker in the process
// observes the same rate budget.
func NewEdgarSource(cfg config.SourceConfig, throttle *Throttle, logger zerolog.Logger) *EdgarSource {
	return &EdgarSource{
		client:          &http.Client{Timeout: cfg.Timeout},
		userAgent:       cfg.UserAgent,
		limit:           cfg.FilingsPerTicker,
		throttle:        throttle,
		cache:           NewDocumentCache(cfg.CacheDir),
		logger:          logger,
		submissionsBase: defaultSubmissionsBase,
		archivesBase:    defaultArchivesBase,
	}
}

// submissionsResponse mirrors the EDGAR submissions JSON. Recent filings
// arrive as parallel arrays indexed together.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	AccessionNumber       []string `json:"accessionNumber"`
	FilingDate            []string `json:"filingDate"`
	Form                  []string `json:"form"`
	PrimaryDocument       []string `json:"primaryDocument"`
	PrimaryDocDescription []string `json:"primaryDocDescription"`
}

// ListFilings fetches the recent submissions for a ticker's CIK,
// most-recent-first, bounded to the configured limit.
func (e *EdgarSource) ListFilings(ctx context.Context, ticker models.Ticker) ([]models.Filing, error) {
	if ticker.CIK == "" {
		return nil, apperrors.NewSourceError(hostOf(e.submissionsBase), "list_filings", 0, apperrors.ErrSourceNotFound, apperrors.ErrNoCIK)
	}

	endpoint := fmt.Sprintf("%s/submissions/CIK%s.json", e.submissionsBase, padCIK(ticker.CIK))
	body, err := e.get(ctx, endpoint, "list_filings")
	if err != nil {
		return nil, err
	}

	var sub submissionsResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, apperrors.NewSourceError(hostOf(endpoint), "list_filings", 0, apperrors.ErrSourceUnavailable,
			apperrors.Wrap(err, "malformed submissions document"))
	}

	recent := sub.Filings.Recent
	n := len(recent.AccessionNumber)
	filings := make([]models.Filing, 0, min(n, e.limit))
	for i := 0; i < n && len(filings) < e.limit; i++ {
		accession := recent.AccessionNumber[i]
		if accession == "" {
			continue
		}
		filedAt, err := time.Parse("2006-01-02", at(recent.FilingDate, i))
		if err != nil {
			// Skip entries with unparseable dates rather than failing the
			// whole listing.
			continue
		}
		form := at(recent.Form, i)
		primaryDoc := at(recent.PrimaryDocument, i)
		title := at(recent.PrimaryDocDescription, i)
		if title == "" {
			title = fmt.Sprintf("%s filing of %s", form, at(recent.FilingDate, i))
		}

		filings = append(filings, models.Filing{
			Symbol:   ticker.Symbol,
			FilingID: accession,
			Hash:     contentHash(accession, at(recent.FilingDate, i), primaryDoc),
			Type:     models.FilingType(form),
			Title:    title,
			FiledAt:  filedAt,
			URL:      e.documentURL(ticker.CIK, accession, primaryDoc),
			Source:   models.SourceSEC,
		})
	}

	return filings, nil
}

// FetchDocument retrieves the raw primary document for a filing, served
// from the local cache when available.
func (e *EdgarSource) FetchDocument(ctx context.Context, filing models.Filing) ([]byte, error) {
	if data, ok := e.cache.Get(filing.FilingID); ok {
		return data, nil
	}
	if filing.URL == "" {
		return nil, apperrors.NewSourceError(hostOf(e.archivesBase), "fetch_document", 0, apperrors.ErrSourceNotFound, nil)
	}

	body, err := e.get(ctx, filing.URL, "fetch_document")
	if err != nil {
		return nil, err
	}

	if cerr := e.cache.Put(filing.FilingID, body); cerr != nil {
		e.logger.Warn().Err(cerr).Str("filing_id", filing.FilingID).Msg("Failed to cache document")
	}
	return body, nil
}

// get issues a throttled GET and maps HTTP failures onto the source
// error taxonomy.
func (e *EdgarSource) get(ctx context.Context, endpoint, op string) ([]byte, error) {
	host := hostOf(endpoint)

	if err := e.throttle.Wait(ctx, host); err != nil {
		return nil, apperrors.NewSourceError(host, op, 0, apperrors.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewSourceError(host, op, 0, apperrors.ErrSourceUnavailable, err)
	}
	// Accept-Encoding is left to the transport so response bodies are
	// transparently decompressed.
	req.Header.Set("User-Agent", e.userAgent)

	start := time.Now()
	resp, err := e.client.Do(req)
	logging.LogSourceCall(e.logger, host, endpoint, time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewSourceError(host, op, 0, apperrors.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		// EDGAR answers 403 to clients exceeding its fair-access rate.
		return nil, apperrors.NewSourceError(host, op, resp.StatusCode, apperrors.ErrSourceRateLimited, nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewSourceError(host, op, resp.StatusCode, apperrors.ErrSourceNotFound, nil)
	default:
		return nil, apperrors.NewSourceError(host, op, resp.StatusCode, apperrors.ErrSourceUnavailable, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewSourceError(host, op, 0, apperrors.ErrSourceUnavailable, err)
	}
	return body, nil
}

// documentURL builds the archive URL for a filing's primary document.
func (e *EdgarSource) documentURL(cik, accession, primaryDoc string) string {
	if primaryDoc == "" {
		return ""
	}
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		e.archivesBase,
		strings.TrimLeft(padCIK(cik), "0"),
		strings.ReplaceAll(accession, "-", ""),
		primaryDoc)
}

// contentHash derives the dedup hash for a filing. An amendment that
// reuses an accession number but changes the primary document or date
// hashes differently and is treated as a distinct filing.
func contentHash(accession, filingDate, primaryDoc string) string {
	h := sha256.Sum256([]byte(accession + "|" + filingDate + "|" + primaryDoc))
	return hex.EncodeToString(h[:])
}

// padCIK left-pads a CIK to the 10 digits the submissions API expects.
func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
