package chart

import (
	"bytes"
	"testing"

	"spendview/internal/core"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderMonthlyBars(t *testing.T) {
	rows := []core.SpendRow{
		{Key: 1, Label: "January", TotalCents: 120000},
		{Key: 2, Label: "February", TotalCents: 98000},
		{Key: 3, Label: "March", TotalCents: 143000},
	}
	png, err := RenderMonthlyBars(rows)
	if err != nil {
		t.Fatalf("RenderMonthlyBars: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderMonthlyBarsEmpty(t *testing.T) {
	if _, err := RenderMonthlyBars(nil); err == nil {
		t.Fatal("expected error for empty rows")
	}
}

func TestRenderDailyLine(t *testing.T) {
	rows := []core.SpendRow{
		{Key: 1, TotalCents: 1500},
		{Key: 2, TotalCents: 0},
		{Key: 15, TotalCents: 7800},
		{Key: 28, TotalCents: 3200},
	}
	png, err := RenderDailyLine(rows)
	if err != nil {
		t.Fatalf("RenderDailyLine: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderDailyLineTooFewPoints(t *testing.T) {
	if _, err := RenderDailyLine([]core.SpendRow{{Key: 1, TotalCents: 100}}); err == nil {
		t.Fatal("expected error for a single point")
	}
}

func TestRenderBreakdownPie(t *testing.T) {
	rows := []core.SpendRow{
		{Key: 1, Label: "Credit Card", TotalCents: 50000},
		{Key: 2, Label: "", TotalCents: 1200},
	}
	png, err := RenderBreakdownPie("Spend by Method", rows)
	if err != nil {
		t.Fatalf("RenderBreakdownPie: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}
