package portfolio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
)

// allocationPalette cycles through slice colors for the donut chart.
var allocationPalette = []string{
	"2563eb", // blue-600
	"16a34a", // green-600
	"d97706", // amber-600
	"dc2626", // red-600
	"7c3aed", // violet-600
	"0891b2", // cyan-600
	"db2777", // pink-600
	"65a30d", // lime-600
}

// cashSliceColor renders the cash slice in neutral gray.
const cashSliceColor = "9ca3af" // gray-400

// RenderAllocationChart renders a PNG donut of the current allocation:
// one slice per holding at market value, plus a cash slice.
func (s *Service) RenderAllocationChart(ctx context.Context) ([]byte, error) {
	valuation, err := s.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	if valuation.TotalValue <= 0 {
		return nil, fmt.Errorf("nothing to chart: portfolio is empty")
	}

	values := make([]chart.Value, 0, len(valuation.Holdings)+1)
	for i, hv := range valuation.Holdings {
		if hv.MarketValue <= 0 {
			continue
		}
		color := allocationPalette[i%len(allocationPalette)]
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", hv.Ticker, hv.MarketValue/valuation.TotalValue*100),
			Value: hv.MarketValue,
			Style: chart.Style{FillColor: drawing.ColorFromHex(color)},
		})
	}
	if valuation.CashBalance > 0 {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("Cash %.1f%%", valuation.CashBalance/valuation.TotalValue*100),
			Value: valuation.CashBalance,
			Style: chart.Style{FillColor: drawing.ColorFromHex(cashSliceColor)},
		})
	}

	graph := chart.DonutChart{
		Title:  "Allocation",
		Width:  600,
		Height: 600,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	// Keep the latest render on disk for the dashboard; serving the response
	// does not depend on it.
	userID := common.ResolveUserID(ctx)
	if err := s.storage.WriteRaw("charts", userID+"_allocation.png", buf.Bytes()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to persist allocation chart")
	}

	return buf.Bytes(), nil
}
