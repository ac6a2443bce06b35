// Package chart renders spend aggregates as PNG images for the dashboard
// endpoints. All renderers take the rows produced by the analytics service
// and return raw PNG bytes.
package chart

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"spendview/internal/core"
)

// RenderMonthlyBars renders a bar chart of spend per month. Rows come from
// a month_of_year aggregation and carry the month name as label.
func RenderMonthlyBars(rows []core.SpendRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data points to render")
	}

	bars := make([]chart.Value, len(rows))
	for i, r := range rows {
		bars[i] = chart.Value{
			Label: r.Label,
			Value: float64(r.TotalCents) / 100,
		}
	}

	graph := chart.BarChart{
		Title:    "Monthly Spend",
		Width:    900,
		Height:   400,
		BarWidth: 48,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderDailyLine renders a line chart of spend per day of month.
func RenderDailyLine(rows []core.SpendRow) ([]byte, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(rows))
	}

	xValues := make([]float64, len(rows))
	yValues := make([]float64, len(rows))
	for i, r := range rows {
		xValues[i] = float64(r.Key)
		yValues[i] = float64(r.TotalCents) / 100
	}

	series := chart.ContinuousSeries{
		Name: "Daily Spend",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  "Daily Spend",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
		},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBreakdownPie renders a pie chart of spend by method or source.
func RenderBreakdownPie(title string, rows []core.SpendRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data points to render")
	}

	values := make([]chart.Value, len(rows))
	for i, r := range rows {
		label := r.Label
		if label == "" {
			label = "Unknown"
		}
		values[i] = chart.Value{
			Label: label,
			Value: float64(r.TotalCents) / 100,
		}
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  600,
		Height: 600,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func moneyFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}
