// Package charts renders PNG charts of a transaction set.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"qltc/internal/core"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

const (
	defaultWidth  = 800
	defaultHeight = 400
	maxSlices     = 8
)

var (
	colorIncome  = drawing.ColorFromHex("2e7d32")
	colorExpense = drawing.ColorFromHex("c62828")
	colorBalance = drawing.ColorFromHex("1565c0")
)

// SummaryChart draws income, expense and balance as three bars.
func SummaryChart(s core.Summary, title string) ([]byte, error) {
	bar := func(label string, d decimal.Decimal, c drawing.Color) chart.Value {
		return chart.Value{
			Label: label + ": " + core.FormatAmount(d),
			Value: d.InexactFloat64(),
			Style: chart.Style{FillColor: c, StrokeColor: c, FontSize: 11},
		}
	}
	bars := []chart.Value{
		bar("Income", s.Income, colorIncome),
		bar("Expense", s.Expense, colorExpense),
		bar("Balance", s.Balance, colorBalance),
	}

	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontSize: 14},
		Width:      defaultWidth,
		Height:     defaultHeight,
		BarWidth:   120,
		// Bars grow from zero so a negative balance points down.
		UseBaseValue: true,
		BaseValue:    0,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			Range:          yRange(bars),
			ValueFormatter: amountFormatter,
			Style:          chart.Style{FontSize: 10},
		},
		Bars: bars,
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render summary chart: %w", err)
	}
	return buf.Bytes(), nil
}

// CategoryChart draws the expense share per category. Small categories past
// the largest few are folded into "Other".
func CategoryChart(txs []core.Transaction, title string) ([]byte, error) {
	byCat := map[string]float64{}
	for _, t := range txs {
		if t.IsIncome() || !t.Amount.IsPositive() {
			continue
		}
		name := t.Category
		if name == "" {
			name = "Uncategorised"
		}
		byCat[name] += t.Amount.InexactFloat64()
	}
	if len(byCat) == 0 {
		return nil, ErrNoData
	}

	type slice struct {
		name  string
		total float64
	}
	slices := make([]slice, 0, len(byCat))
	for n, v := range byCat {
		slices = append(slices, slice{n, v})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].total != slices[j].total {
			return slices[i].total > slices[j].total
		}
		return slices[i].name < slices[j].name
	})
	if len(slices) > maxSlices {
		other := slice{name: "Other"}
		for _, s := range slices[maxSlices-1:] {
			other.total += s.total
		}
		slices = append(slices[:maxSlices-1], other)
	}

	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		values = append(values, chart.Value{
			Label: s.name,
			Value: s.total,
			Style: chart.Style{FontSize: 10},
		})
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  defaultHeight * 2,
		Height: defaultHeight * 2,
		Values: values,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
	}

	buf := bytes.NewBuffer(nil)
	if err := pie.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buf.Bytes(), nil
}

// yRange always includes zero and never collapses to a point.
func yRange(bars []chart.Value) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = min(lo, b.Value)
		hi = max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func amountFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return core.FormatAmount(decimal.NewFromFloat(f).Round(0))
}
