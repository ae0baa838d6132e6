package polymarket

import (
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// mapOpenOrder converts a CLOB open order to the domain type. The live
// remaining size is the original minus what already matched.
func mapOpenOrder(o clobOpenOrder) domain.Order {
	original := parseFloat(o.OriginalSize)
	matched := parseFloat(o.SizeMatched)
	remaining := original - matched
	if remaining < 0 {
		remaining = 0
	}

	return domain.Order{
		ExchangeID: o.ID,
		TokenID:    o.AssetID,
		Side:       mapSide(o.Side),
		Price:      parseFloat(o.Price),
		Size:       remaining,
		PlacedAt:   parseTimestamp(o.CreatedAt),
	}
}

// mapPositions converts data API position rows, dropping resolved and
// empty entries.
func mapPositions(raw []dataPosition) []domain.Position {
	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		if p.Redeemable || p.Size <= 0 {
			continue
		}
		positions = append(positions, domain.Position{
			TokenID:  p.Asset,
			Size:     p.Size,
			AvgPrice: p.AvgPrice,
		})
	}
	return positions
}

// mapWSLevels converts websocket book levels, dropping malformed rows.
func mapWSLevels(raw []wsBookLevel) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil || price <= 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}

func mapSide(s string) domain.Side {
	if strings.EqualFold(s, "SELL") {
		return domain.SideSell
	}
	return domain.SideBuy
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// parseTimestamp accepts the mixture of formats Polymarket emits: unix
// seconds, unix milliseconds, and a few ISO 8601 shapes.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05", "2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
