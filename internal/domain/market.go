package domain

import "time"

// Market represents one binary prediction market on Polymarket.
// Every market carries exactly two outcome tokens; each token is the
// reverse of the other. The pairing is fixed at configuration load.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	MarketType  string // hyperparameter group, e.g. "sports", "crypto"
	YesTokenID  string
	NoTokenID   string
	NegRisk     bool
	EndDate     time.Time
	Active      bool
	Closed      bool
}

// Tokens returns both outcome token IDs, YES first.
func (m Market) Tokens() [2]string {
	return [2]string{m.YesTokenID, m.NoTokenID}
}

// ReverseToken returns the opposite outcome token for tokenID, or ""
// when the token does not belong to this market.
func (m Market) ReverseToken(tokenID string) string {
	switch tokenID {
	case m.YesTokenID:
		return m.NoTokenID
	case m.NoTokenID:
		return m.YesTokenID
	}
	return ""
}

// HoursToResolution returns the hours until the market resolves.
// Returns 0 when EndDate is unset or already past.
func (m Market) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TruncateQuestion shortens a market question for log lines, falling back
// to the condition ID when the question is empty.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
