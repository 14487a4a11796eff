package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSignalUnmarshalLenient(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		confidence *float64
		windowDays *int
	}{
		{"numbers", `{"headline":"h","why_it_matters":"w","confidence":0.4,"window_days":7}`, ptr(0.4), iptr(7)},
		{"string confidence dropped", `{"headline":"h","confidence":"high","window_days":"soon"}`, nil, nil},
		{"float window rounded", `{"headline":"h","window_days":6.6}`, nil, iptr(7)},
		{"null fields", `{"headline":"h","confidence":null}`, nil, nil},
		{"absent", `{"headline":"h"}`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Signal
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if s.Headline != "h" {
				t.Errorf("Headline = %q", s.Headline)
			}
			if !floatEq(s.Confidence, tt.confidence) {
				t.Errorf("Confidence = %v, want %v", deref(s.Confidence), deref(tt.confidence))
			}
			if (s.WindowDays == nil) != (tt.windowDays == nil) || (s.WindowDays != nil && *s.WindowDays != *tt.windowDays) {
				t.Errorf("WindowDays = %v, want %v", s.WindowDays, tt.windowDays)
			}
		})
	}
}

func TestSignalUnmarshalWrongShape(t *testing.T) {
	var s Signal
	if err := json.Unmarshal([]byte(`["not","an","object"]`), &s); err == nil {
		t.Error("expected error for array input")
	}
}

func TestForecastDocumentUnmarshal(t *testing.T) {
	in := `{
		"as_of_jst": "2024/5/1 9:00:00",
		"coverage_count": "many",
		"top_themes": ["energy", "elections"],
		"signals": [{"headline":"a","why_it_matters":"b","confidence":1.4}],
		"scenarios_7_14d": [{"name":"base","description":"d","probability":"likely","triggers":["t"],"watchlist":["w"]}],
		"gaia_lens": {"climate_signals":["heat"],"environmental_risks":[],"note":"n"},
		"horoscope_narrative": "Mercury is busy",
		"caveats": ["thin sourcing", "fast-moving"],
		"confidence_overall": 0.6,
		"extra_field": true
	}`

	var doc ForecastDocument
	if err := json.Unmarshal([]byte(in), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if doc.CoverageCount != 0 {
		t.Errorf("CoverageCount = %d, want 0 for non-numeric", doc.CoverageCount)
	}
	if len(doc.Signals) != 1 || doc.Signals[0].Confidence == nil || *doc.Signals[0].Confidence != 1.4 {
		t.Errorf("Signals = %+v", doc.Signals)
	}
	if len(doc.Scenarios) != 1 || doc.Scenarios[0].Probability != nil {
		t.Errorf("Scenarios = %+v", doc.Scenarios)
	}
	if doc.RiskLens.Note != "n" || len(doc.RiskLens.ClimateSignals) != 1 {
		t.Errorf("RiskLens = %+v", doc.RiskLens)
	}
	if doc.Caveats != "thin sourcing\nfast-moving" {
		t.Errorf("Caveats = %q", doc.Caveats)
	}
	if doc.Narrative != "Mercury is busy" {
		t.Errorf("Narrative = %q", doc.Narrative)
	}
	if doc.ConfidenceOverall == nil || *doc.ConfidenceOverall != 0.6 {
		t.Errorf("ConfidenceOverall = %v", deref(doc.ConfidenceOverall))
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "extra_field") {
		t.Errorf("unexpected passthrough field in %s", out)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.4, 1.0},
		{-0.2, 0.0},
		{0.35, 0.35},
	}
	for _, tt := range tests {
		got := Clamp01(ptr(tt.in))
		if got == nil || *got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, deref(got), tt.want)
		}
	}
	if Clamp01(nil) != nil {
		t.Error("Clamp01(nil) should stay nil")
	}
}

func ptr(f float64) *float64 { return &f }
func iptr(i int) *int        { return &i }

func deref(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func TestForecastDocumentVariantShapes(t *testing.T) {
	in := `{
		"as_of_jst": 20240501,
		"top_themes": "energy",
		"signals": [{"headline": 42, "why_it_matters": ["a", "b"], "region": null}, "stray", 7],
		"scenarios_7_14d": [{"name": "base", "triggers": "oil", "watchlist": [1, "w", ""]}],
		"gaia_lens": {"climate_signals": "heat", "environmental_risks": null, "note": ["x", "y"]},
		"caveats": {"k": "v"}
	}`

	var doc ForecastDocument
	if err := json.Unmarshal([]byte(in), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if doc.AsOfJST != "20240501" {
		t.Errorf("AsOfJST = %q", doc.AsOfJST)
	}
	if len(doc.TopThemes) != 1 || doc.TopThemes[0] != "energy" {
		t.Errorf("TopThemes = %q", doc.TopThemes)
	}
	if len(doc.Signals) != 1 || doc.Signals[0].Headline != "42" || doc.Signals[0].WhyItMatters != "a\nb" || doc.Signals[0].Region != "" {
		t.Errorf("Signals = %+v", doc.Signals)
	}
	sc := doc.Scenarios
	if len(sc) != 1 || len(sc[0].Triggers) != 1 || sc[0].Triggers[0] != "oil" || len(sc[0].Watchlist) != 2 || sc[0].Watchlist[0] != "1" {
		t.Errorf("Scenarios = %+v", sc)
	}
	if len(doc.RiskLens.ClimateSignals) != 1 || doc.RiskLens.EnvironmentalRisks != nil || doc.RiskLens.Note != "x\ny" {
		t.Errorf("RiskLens = %+v", doc.RiskLens)
	}
	if doc.Caveats != `{"k": "v"}` {
		t.Errorf("Caveats = %q", doc.Caveats)
	}
}

func TestChunkSummaryLenient(t *testing.T) {
	var c ChunkSummary
	if err := json.Unmarshal([]byte(`{"themes":"trade","signals":[{"headline":"h"},null]}`), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(c.Themes) != 1 || c.Themes[0] != "trade" || len(c.Signals) != 1 {
		t.Errorf("ChunkSummary = %+v", c)
	}
}
