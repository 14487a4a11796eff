package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iWorld-y/news_hud/app/hud/pkg/llm"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

// fakeCompleter 按请求内容返回预置回复
type fakeCompleter struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    func(req llm.Request) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeCompleter) byModel(name string) []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llm.Request
	for _, r := range f.requests {
		if r.Model == name {
			out = append(out, r)
		}
	}
	return out
}

const chunkReply = `{"themes":["energy","trade","elections"],"signals":[{"headline":"h","why_it_matters":"w","confidence":0.4,"window_days":7}]}`

const finalReply = `{"as_of_jst":"2024/5/1 9:00:00","coverage_count":999,"top_themes":["energy"],
"signals":[{"headline":"a","why_it_matters":"b","confidence":1.7},{"headline":"c","why_it_matters":"d","confidence":-0.2},{"headline":"e","why_it_matters":"f","confidence":"high"}],
"scenarios_7_14d":[{"name":"s","description":"d","probability":1.5,"triggers":["t"],"watchlist":["w"]}],
"gaia_lens":{"climate_signals":["heat"],"environmental_risks":[],"note":"n"},
"horoscope_narrative":"stars","caveats":["one","two"],"confidence_overall":3}`

func newTestForecaster(c llm.Completer) *Forecaster {
	f := New(c, Config{FastModel: "fast", FinalModel: "final"})
	f.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func items(n int) []model.Item {
	out := make([]model.Item, n)
	for i := range out {
		out[i] = model.Item{Title: fmt.Sprintf("#%d#", i), URL: fmt.Sprintf("http://x/%d", i)}
	}
	return out
}

func standardReply(req llm.Request) (string, error) {
	if req.Model == "final" {
		return finalReply, nil
	}
	return chunkReply, nil
}

func TestForecastChunksAndCoverage(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		wantChunks int
		wantCount  int
	}{
		{"single chunk", 1, 1, 1},
		{"exact chunk", 60, 1, 60},
		{"partial last chunk", 130, 3, 130},
		{"capped", 700, 10, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{reply: standardReply}
			doc, err := newTestForecaster(fc).Forecast(context.Background(), items(tt.n), 0)
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}
			if got := len(fc.byModel("fast")); got != tt.wantChunks {
				t.Errorf("map requests = %d, want %d", got, tt.wantChunks)
			}
			if got := len(fc.byModel("final")); got != 1 {
				t.Errorf("reduce requests = %d, want 1", got)
			}
			if doc.CoverageCount != tt.wantCount {
				t.Errorf("CoverageCount = %d, want %d", doc.CoverageCount, tt.wantCount)
			}
		})
	}
}

func TestSummarizeChunksRequests(t *testing.T) {
	fc := &fakeCompleter{reply: standardReply}
	in := []model.Item{
		{Title: "a", Summary: "<p>Hello &amp; <b>world</b></p>", AI: "ai note", Note: "user note"},
		{Title: "b", Note: "user note"},
	}

	partials, err := newTestForecaster(fc).SummarizeChunks(context.Background(), in, 7)
	if err != nil {
		t.Fatalf("SummarizeChunks() error = %v", err)
	}
	if len(partials) != 1 || len(partials[0].Themes) != 3 || len(partials[0].Signals) != 1 {
		t.Fatalf("partials = %+v", partials)
	}

	req := fc.requests[0]
	if !req.JSON || req.Temperature != 0.2 || req.Model != "fast" {
		t.Errorf("request = %+v", req)
	}
	for _, want := range []string{"Horizon: 7 days", `"summary":"Hello & world"`, `"note":"ai note"`, `"note":"user note"`} {
		if !strings.Contains(req.User, want) {
			t.Errorf("prompt missing %q\n%s", want, req.User)
		}
	}
	if strings.Contains(req.User, "<b>") {
		t.Errorf("prompt keeps HTML\n%s", req.User)
	}
}

func TestSummarizeChunksFailFast(t *testing.T) {
	fc := &fakeCompleter{reply: func(req llm.Request) (string, error) {
		if strings.Contains(req.User, "#65#") {
			return "not json at all", nil
		}
		return chunkReply, nil
	}}

	_, err := newTestForecaster(fc).SummarizeChunks(context.Background(), items(130), 14)
	var ce *ChunkError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ChunkError", err)
	}
	if ce.Index != 1 {
		t.Errorf("Index = %d, want 1", ce.Index)
	}
}

func TestSummarizeChunksUpstreamError(t *testing.T) {
	upstream := &llm.UpstreamError{Model: "fast", Err: errors.New("500")}
	fc := &fakeCompleter{reply: func(req llm.Request) (string, error) { return "", upstream }}

	_, err := newTestForecaster(fc).Forecast(context.Background(), items(3), 14)
	var ue *llm.UpstreamError
	var ce *ChunkError
	if !errors.As(err, &ce) || !errors.As(err, &ue) {
		t.Errorf("error = %v, want chunk-wrapped upstream error", err)
	}
	if len(fc.byModel("final")) != 0 {
		t.Error("reduce must not run after a chunk failure")
	}
}

func TestReduceForecastNormalizes(t *testing.T) {
	fc := &fakeCompleter{reply: standardReply}
	doc, err := newTestForecaster(fc).ReduceForecast(context.Background(), []model.ChunkSummary{{Themes: []string{"x"}}}, 14, 42)
	if err != nil {
		t.Fatalf("ReduceForecast() error = %v", err)
	}

	req := fc.requests[0]
	if req.Model != "final" || req.Temperature != 0.3 || !req.JSON {
		t.Errorf("request = %+v", req)
	}
	if doc.CoverageCount != 42 {
		t.Errorf("CoverageCount = %d", doc.CoverageCount)
	}
	if doc.AsOfJST != "2024/5/1 9:00:00" {
		t.Errorf("AsOfJST = %q", doc.AsOfJST)
	}

	conf := func(i int) *float64 { return doc.Signals[i].Confidence }
	if conf(0) == nil || *conf(0) != 1 || conf(1) == nil || *conf(1) != 0 || conf(2) != nil {
		t.Errorf("signal confidences = %v %v %v", conf(0), conf(1), conf(2))
	}
	if p := doc.Scenarios[0].Probability; p == nil || *p != 1 {
		t.Errorf("probability = %v", p)
	}
	if doc.ConfidenceOverall == nil || *doc.ConfidenceOverall != 1 {
		t.Errorf("ConfidenceOverall = %v", doc.ConfidenceOverall)
	}
	if doc.Caveats != "one\ntwo" || doc.Narrative != "stars" || doc.RiskLens.Note != "n" {
		t.Errorf("text fields = %q %q %q", doc.Caveats, doc.Narrative, doc.RiskLens.Note)
	}
}

func TestReduceForecastParsing(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{"direct", `{"top_themes":["a"]}`, false},
		{"fenced", "```json\n{\"top_themes\":[\"a\"]}\n```", false},
		{"surrounded", `Here is the forecast: {"top_themes":["a"]} hope it helps`, false},
		{"no braces", `sorry, I cannot help`, true},
		{"broken braces", `{"top_themes": [}`, true},
		{"null", `null`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{reply: func(llm.Request) (string, error) { return tt.reply, nil }}
			doc, err := newTestForecaster(fc).ReduceForecast(context.Background(), nil, 14, 1)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFinalDocument) {
					t.Errorf("error = %v, want ErrInvalidFinalDocument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReduceForecast() error = %v", err)
			}
			if len(doc.TopThemes) != 1 || doc.AsOfJST == "" || doc.Signals == nil || doc.Scenarios == nil {
				t.Errorf("doc = %+v", doc)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	got := chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != 5 {
		t.Errorf("chunk() = %v", got)
	}
	if got := chunk([]int{}, 60); len(got) != 0 {
		t.Errorf("chunk(empty) = %v", got)
	}
}

func TestReduceForecastDefaultsAsOf(t *testing.T) {
	fc := &fakeCompleter{reply: func(llm.Request) (string, error) { return `{"as_of_jst":"  "}`, nil }}
	doc, err := newTestForecaster(fc).ReduceForecast(context.Background(), nil, 14, 0)
	if err != nil {
		t.Fatalf("ReduceForecast() error = %v", err)
	}
	if doc.AsOfJST != "2024/5/1 09:00:00" {
		t.Errorf("AsOfJST = %q", doc.AsOfJST)
	}
}

func TestReduceForecastAcceptsVariantFieldTypes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		check func(doc *model.ForecastDocument) bool
	}{
		{"string themes", `{"top_themes":"energy"}`, func(d *model.ForecastDocument) bool {
			return len(d.TopThemes) == 1 && d.TopThemes[0] == "energy"
		}},
		{"string triggers", `{"scenarios_7_14d":[{"name":"s","triggers":"oil","watchlist":["a",2]}]}`, func(d *model.ForecastDocument) bool {
			sc := d.Scenarios[0]
			return len(sc.Triggers) == 1 && sc.Triggers[0] == "oil" && len(sc.Watchlist) == 2 && sc.Watchlist[1] == "2"
		}},
		{"list note", `{"gaia_lens":{"note":["a","b"],"climate_signals":"heat"}}`, func(d *model.ForecastDocument) bool {
			return d.RiskLens.Note == "a\nb" && len(d.RiskLens.ClimateSignals) == 1 && d.RiskLens.EnvironmentalRisks != nil
		}},
		{"numeric headline", `{"signals":[{"headline":42,"why_it_matters":["x"]},"stray"]}`, func(d *model.ForecastDocument) bool {
			return len(d.Signals) == 1 && d.Signals[0].Headline == "42" && d.Signals[0].WhyItMatters == "x"
		}},
		{"object where list expected", `{"signals":{"headline":"solo"},"scenarios_7_14d":"none"}`, func(d *model.ForecastDocument) bool {
			return len(d.Signals) == 1 && d.Signals[0].Headline == "solo" && len(d.Scenarios) == 0
		}},
		{"string lens", `{"gaia_lens":"calm","caveats":7}`, func(d *model.ForecastDocument) bool {
			return d.RiskLens.Note == "calm" && d.Caveats == "7"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{reply: func(llm.Request) (string, error) { return tt.reply, nil }}
			doc, err := newTestForecaster(fc).ReduceForecast(context.Background(), nil, 14, 3)
			if err != nil {
				t.Fatalf("ReduceForecast() error = %v", err)
			}
			if !tt.check(doc) {
				t.Errorf("doc = %+v", doc)
			}
			if doc.CoverageCount != 3 || doc.TopThemes == nil || doc.Scenarios == nil {
				t.Errorf("doc not normalized: %+v", doc)
			}
		})
	}
}
