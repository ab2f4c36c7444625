package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"edgar-tracker/internal/models"
)

const (
	companyTickersPath  = "/files/company_tickers.json"
	companyExchangePath = "/files/company_tickers_exchange.json"
)

// companyTicker mirrors one entry of the registry's company list.
type companyTicker struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// exchangeTable is the column-oriented exchange file:
// {"fields": ["cik","name","ticker","exchange"], "data": [[...], ...]}.
type exchangeTable struct {
	Fields []string            `json:"fields"`
	Data   [][]json.RawMessage `json:"data"`
}

// FetchCompanyTickers downloads the registry's full symbol-to-CIK table,
// enriched with exchanges when the exchange file is reachable. Used for
// bulk ticker import so users can add symbols without knowing CIKs.
func (e *EdgarSource) FetchCompanyTickers(ctx context.Context) ([]models.Ticker, error) {
	body, err := e.get(ctx, e.archivesBase+companyTickersPath, "fetch_company_tickers")
	if err != nil {
		return nil, err
	}

	var primary map[string]companyTicker
	if err := json.Unmarshal(body, &primary); err != nil {
		return nil, fmt.Errorf("malformed company tickers document: %w", err)
	}

	exchanges := e.fetchExchangeMap(ctx)

	tickers := make([]models.Ticker, 0, len(primary))
	for _, entry := range primary {
		if entry.Ticker == "" {
			continue
		}
		tickers = append(tickers, models.Ticker{
			Symbol:   entry.Ticker,
			CIK:      padCIK(strconv.Itoa(entry.CIK)),
			Name:     entry.Title,
			Exchange: exchanges[entry.CIK],
		})
	}
	return tickers, nil
}

// fetchExchangeMap loads cik -> exchange. Best effort: import proceeds
// without exchanges when the file is unavailable.
func (e *EdgarSource) fetchExchangeMap(ctx context.Context) map[int]string {
	body, err := e.get(ctx, e.archivesBase+companyExchangePath, "fetch_company_exchanges")
	if err != nil {
		return nil
	}

	var table exchangeTable
	if err := json.Unmarshal(body, &table); err != nil {
		return nil
	}

	cikIdx, exchIdx := -1, -1
	for i, f := range table.Fields {
		switch f {
		case "cik":
			cikIdx = i
		case "exchange":
			exchIdx = i
		}
	}
	if cikIdx < 0 || exchIdx < 0 {
		return nil
	}

	out := make(map[int]string, len(table.Data))
	for _, row := range table.Data {
		if cikIdx >= len(row) || exchIdx >= len(row) {
			continue
		}
		var cik int
		if err := json.Unmarshal(row[cikIdx], &cik); err != nil {
			continue
		}
		var exch string
		if err := json.Unmarshal(row[exchIdx], &exch); err != nil {
			continue
		}
		out[cik] = exch
	}
	return out
}
