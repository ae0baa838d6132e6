package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polymaker/internal/domain"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

// Console implements ports.Notifier, rendering the report to stdout.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Report prints the current positions, resting orders, merge history,
// risk events, and daily activity.
func (c *Console) Report(_ context.Context, in ports.ReportInput) error {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(c.out, "\n=== polymaker report — %s ===\n", at.Format("2006-01-02 15:04:05"))

	c.printPositions(in.Positions)
	c.printOrders(in.OpenOrders)
	c.printMerges(in.Merges)
	c.printRiskEvents(in.RiskEvents)
	c.printDailies(in.Dailies)
	return nil
}

func (c *Console) printPositions(positions []domain.Position) {
	fmt.Fprintf(c.out, "\nPositions (%d)\n", len(positions))
	if len(positions) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Token", "Size", "Avg price", "Cost basis")

	var totalCost float64
	for _, p := range positions {
		table.Append(
			shortToken(p.TokenID),
			fmt.Sprintf("%.2f", p.Size),
			fmt.Sprintf("%.4f", p.AvgPrice),
			fmt.Sprintf("$%.2f", p.CostBasis()),
		)
		totalCost += p.CostBasis()
	}
	table.Render()
	fmt.Fprintf(c.out, "Total cost basis: $%.2f\n", totalCost)
}

func (c *Console) printOrders(orders []domain.Order) {
	fmt.Fprintf(c.out, "\nOpen orders (%d)\n", len(orders))
	if len(orders) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Order", "Token", "Side", "Price", "Size", "Placed")

	for _, o := range orders {
		placed := ""
		if !o.PlacedAt.IsZero() {
			placed = o.PlacedAt.Format("01-02 15:04")
		}
		table.Append(
			shortToken(o.ExchangeID),
			shortToken(o.TokenID),
			string(o.Side),
			fmt.Sprintf("%.4f", o.Price),
			fmt.Sprintf("%.2f", o.Size),
			placed,
		)
	}
	table.Render()
}

func (c *Console) printMerges(merges []domain.MergeResult) {
	fmt.Fprintf(c.out, "\nMerges (%d)\n", len(merges))
	if len(merges) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Condition", "Amount", "USDC", "Gas", "Status", "At")

	var volume, gas float64
	for _, m := range merges {
		status := "OK"
		if !m.Success {
			status = "FAILED"
		}
		table.Append(
			shortToken(m.ConditionID),
			fmt.Sprintf("%.2f", m.Amount),
			fmt.Sprintf("$%.2f", m.USDCReceived),
			fmt.Sprintf("$%.4f", m.GasCostUSD),
			status,
			m.ExecutedAt.Format("01-02 15:04"),
		)
		if m.Success {
			volume += m.USDCReceived
			gas += m.GasCostUSD
		}
	}
	table.Render()
	fmt.Fprintf(c.out, "Merged volume: $%.2f (gas $%.4f)\n", volume, gas)
}

func (c *Console) printRiskEvents(events []domain.RiskEvent) {
	fmt.Fprintf(c.out, "\nRisk events (%d)\n", len(events))
	if len(events) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Type", "Token", "Detail", "At")

	for _, ev := range events {
		table.Append(
			string(ev.Type),
			shortToken(ev.TokenID),
			ev.Detail,
			ev.OccurredAt.Format("01-02 15:04"),
		)
	}
	table.Render()
}

func (c *Console) printDailies(dailies []domain.DailySummary) {
	fmt.Fprintf(c.out, "\nDaily activity (%d days)\n", len(dailies))
	if len(dailies) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Placed", "Cancelled", "Fills", "Merges", "Volume", "Stops")

	for _, d := range dailies {
		table.Append(
			d.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", d.OrdersPlaced),
			fmt.Sprintf("%d", d.OrdersCancelled),
			fmt.Sprintf("%d", d.Fills),
			fmt.Sprintf("%d", d.Merges),
			fmt.Sprintf("$%.2f", d.MergeVolume),
			fmt.Sprintf("%d", d.StopLosses),
		)
	}
	table.Render()
}

// shortToken truncates long hex identifiers for table cells.
func shortToken(s string) string {
	if len(s) > 14 {
		return s[:12] + ".."
	}
	return s
}
