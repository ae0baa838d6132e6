package params

// provider.go — remote tabular configuration source.
//
// Markets and hyperparameters live in two published CSV sheets. A row
// that fails schema validation is dropped with a warning instead of
// failing the whole load, so one bad edit cannot take the engine down.

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// Provider implements ports.ParamsProvider over two CSV endpoints.
type Provider struct {
	http           *http.Client
	marketsURL     string
	hyperparamsURL string
}

// NewProvider creates a provider reading the given sheet URLs.
func NewProvider(marketsURL, hyperparamsURL string) *Provider {
	return &Provider{
		http:           &http.Client{Timeout: 15 * time.Second},
		marketsURL:     marketsURL,
		hyperparamsURL: hyperparamsURL,
	}
}

// FetchMarkets downloads and parses the markets sheet.
//
// Expected columns: condition_id, question, slug, market_type,
// yes_token_id, no_token_id, neg_risk, end_date, active.
func (p *Provider) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, header, err := p.fetchCSV(ctx, p.marketsURL)
	if err != nil {
		return nil, fmt.Errorf("params: fetch markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(rows))
	for i, row := range rows {
		mkt, err := parseMarketRow(header, row)
		if err != nil {
			slog.Warn("params: dropping market row", "row", i+2, "err", err)
			continue
		}
		markets = append(markets, mkt)
	}
	return markets, nil
}

// FetchHyperparameters downloads and parses the hyperparameters sheet,
// keyed by market type.
//
// Expected columns: market_type, trade_size, max_size, min_size,
// max_spread, stop_loss_threshold, take_profit_threshold,
// spread_threshold, volatility_threshold, sleep_period_hours.
func (p *Provider) FetchHyperparameters(ctx context.Context) (map[string]domain.Hyperparameters, error) {
	rows, header, err := p.fetchCSV(ctx, p.hyperparamsURL)
	if err != nil {
		return nil, fmt.Errorf("params: fetch hyperparameters: %w", err)
	}

	params := make(map[string]domain.Hyperparameters, len(rows))
	for i, row := range rows {
		h, err := parseHyperparamsRow(header, row)
		if err == nil {
			err = h.Validate()
		}
		if err != nil {
			slog.Warn("params: dropping hyperparameter row", "row", i+2, "err", err)
			continue
		}
		if _, dup := params[h.MarketType]; dup {
			slog.Warn("params: duplicate market_type row, keeping first", "market_type", h.MarketType)
			continue
		}
		params[h.MarketType] = h
	}
	return params, nil
}

// fetchCSV downloads a sheet and returns its data rows plus a
// column-name→index header map.
func (p *Provider) fetchCSV(ctx context.Context, url string) ([][]string, map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1 // validated per row against the header
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty sheet")
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[normalizeColumn(name)] = i
	}
	return records[1:], header, nil
}

func parseMarketRow(header map[string]int, row []string) (domain.Market, error) {
	get := fieldGetter(header, row)

	mkt := domain.Market{
		ConditionID: get("condition_id"),
		Question:    get("question"),
		Slug:        get("slug"),
		MarketType:  get("market_type"),
		YesTokenID:  get("yes_token_id"),
		NoTokenID:   get("no_token_id"),
		NegRisk:     parseBool(get("neg_risk")),
		Active:      true,
	}

	if mkt.ConditionID == "" {
		return domain.Market{}, fmt.Errorf("missing condition_id")
	}
	if mkt.YesTokenID == "" || mkt.NoTokenID == "" {
		return domain.Market{}, fmt.Errorf("market %s: missing token ids", mkt.ConditionID)
	}
	if mkt.YesTokenID == mkt.NoTokenID {
		return domain.Market{}, fmt.Errorf("market %s: identical outcome tokens", mkt.ConditionID)
	}
	if mkt.MarketType == "" {
		return domain.Market{}, fmt.Errorf("market %s: missing market_type", mkt.ConditionID)
	}

	if s := get("active"); s != "" {
		mkt.Active = parseBool(s)
	}
	if s := get("end_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return domain.Market{}, fmt.Errorf("market %s: bad end_date %q", mkt.ConditionID, s)
		}
		mkt.EndDate = t
	}
	return mkt, nil
}

func parseHyperparamsRow(header map[string]int, row []string) (domain.Hyperparameters, error) {
	get := fieldGetter(header, row)

	h := domain.Hyperparameters{MarketType: get("market_type")}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"trade_size", &h.TradeSize},
		{"max_size", &h.MaxSize},
		{"min_size", &h.MinSize},
		{"max_spread", &h.MaxSpread},
		{"stop_loss_threshold", &h.StopLossThreshold},
		{"take_profit_threshold", &h.TakeProfitThreshold},
		{"spread_threshold", &h.SpreadThreshold},
		{"volatility_threshold", &h.VolatilityThreshold},
		{"sleep_period_hours", &h.SleepPeriodHours},
	}
	for _, f := range fields {
		s := get(f.name)
		if s == "" {
			return domain.Hyperparameters{}, fmt.Errorf("type %q: missing %s", h.MarketType, f.name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Hyperparameters{}, fmt.Errorf("type %q: bad %s %q", h.MarketType, f.name, s)
		}
		*f.dst = v
	}
	return h, nil
}

// fieldGetter resolves header-named fields in a row, tolerating short rows.
func fieldGetter(header map[string]int, row []string) func(string) string {
	return func(name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
