// Package charts renders report data as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"ledger/internal/ledger"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("charts: no data to render")

const (
	chartWidth  = 1200
	chartHeight = 600
)

func background() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    50,
			Left:   50,
			Right:  50,
			Bottom: 50,
		},
		FillColor: chart.ColorWhite,
	}
}

// MonthlyTrend renders income and expense totals per month as grouped bars,
// oldest month first.
func MonthlyTrend(flows []ledger.MonthFlow) ([]byte, error) {
	if len(flows) == 0 {
		return nil, ErrNoData
	}

	bars := make([]chart.Value, 0, len(flows)*2)
	for _, f := range flows {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s in", f.Month),
			Value: f.Income.Units(),
			Style: chart.Style{
				StrokeColor: chart.ColorGreen,
				FillColor:   chart.ColorGreen.WithAlpha(180),
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s out", f.Month),
			Value: f.Expense.Units(),
			Style: chart.Style{
				StrokeColor: chart.ColorRed,
				FillColor:   chart.ColorRed.WithAlpha(180),
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
	}

	graph := chart.BarChart{
		Title: "Monthly income and expenses",
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: chart.ColorBlack,
		},
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   48,
		Background: background(),
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.2f", v.(float64))
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render monthly trend chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// CategoryBreakdown renders a month's spending per category as a pie chart.
// Slices below one percent of the total are dropped to keep labels readable.
func CategoryBreakdown(shares []ledger.CategoryShare) ([]byte, error) {
	values := make([]chart.Value, 0, len(shares))
	for _, s := range shares {
		if s.Percent <= 1.0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", s.Category, s.Amount, s.Percent),
			Value: s.Amount.Units(),
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Width:      chartWidth,
		Height:     chartHeight,
		Values:     values,
		Background: background(),
	}

	buffer := bytes.NewBuffer(nil)
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category breakdown chart: %w", err)
	}
	return buffer.Bytes(), nil
}
