package alphavantage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// parseDecimal converts Alpha Vantage numeric strings ("186.20", "0.65%", "None").
// ok is false for placeholders and garbage.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	switch s {
	case "", "None", "null", "-":
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// orUnknown substitutes the placeholder used for missing overview fields
func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return "Unknown"
	}
	return s
}

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
}

// parseGlobalQuote parses a GLOBAL_QUOTE body. An empty "Global Quote" object is
// how Alpha Vantage answers for unknown symbols.
func parseGlobalQuote(body []byte, requested string) (domain.Quote, error) {
	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, ErrUnavailable{Symbol: requested, Err: fmt.Errorf("malformed quote body: %w", err)}
	}
	if len(resp.GlobalQuote) == 0 {
		return domain.Quote{}, ErrSymbolNotFound{Symbol: requested}
	}

	gq := resp.GlobalQuote
	price, ok := parseDecimal(gq["05. price"])
	if !ok {
		return domain.Quote{}, ErrUnavailable{Symbol: requested, Err: fmt.Errorf("missing price in quote")}
	}
	change, _ := parseDecimal(gq["09. change"])
	changePct, _ := parseDecimal(gq["10. change percent"])

	symbol := strings.ToUpper(strings.TrimSpace(gq["01. symbol"]))
	if symbol == "" {
		symbol = requested
	}

	return domain.Quote{
		Symbol:           symbol,
		Price:            price,
		Change:           change,
		ChangePercent:    changePct,
		LatestTradingDay: gq["07. latest trading day"],
	}, nil
}

type overviewResponse struct {
	Symbol string `json:"Symbol"`
	Name   string `json:"Name"`
	Sector string `json:"Sector"`
}

// parseCompanyOverview parses an OVERVIEW body. Alpha Vantage returns {} for unknown symbols.
func parseCompanyOverview(body []byte, requested string) (domain.CompanyOverview, error) {
	var resp overviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.CompanyOverview{}, ErrUnavailable{Symbol: requested, Err: fmt.Errorf("malformed overview body: %w", err)}
	}
	if resp.Symbol == "" && resp.Name == "" {
		return domain.CompanyOverview{}, ErrSymbolNotFound{Symbol: requested}
	}

	return domain.CompanyOverview{
		Symbol: requested,
		Name:   orUnknown(resp.Name),
		Sector: orUnknown(resp.Sector),
	}, nil
}

type symbolSearchResponse struct {
	BestMatches []map[string]string `json:"bestMatches"`
}

func parseSymbolSearch(body []byte) ([]domain.SymbolSuggestion, error) {
	var resp symbolSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed search body: %w", err)
	}

	out := make([]domain.SymbolSuggestion, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		symbol := strings.TrimSpace(m["1. symbol"])
		if symbol == "" {
			continue
		}
		score, _ := parseDecimal(m["9. matchScore"])
		out = append(out, domain.SymbolSuggestion{
			Symbol:     symbol,
			Name:       m["2. name"],
			Type:       m["3. type"],
			Region:     m["4. region"],
			Currency:   m["8. currency"],
			MatchScore: score,
		})
	}
	return out, nil
}
