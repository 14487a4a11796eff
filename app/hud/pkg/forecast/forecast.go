package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/news_hud/app/hud/pkg/llm"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

const (
	DefaultMaxItems    = 600
	DefaultChunkSize   = 60
	DefaultHorizonDays = 14

	mapTemperature    = 0.2
	reduceTemperature = 0.3

	jstLayout = "2006/1/2 15:04:05"
)

var jst = time.FixedZone("JST", 9*3600)

// ErrInvalidFinalDocument 最终文档无法解析为 JSON 对象
var ErrInvalidFinalDocument = errors.New("invalid final document")

// ChunkError 某个分块摘要失败，整个预测随之失败
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk #%d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Config 预测流水线配置
type Config struct {
	FastModel   string
	FinalModel  string
	MaxItems    int
	ChunkSize   int
	HorizonDays int
}

// Forecaster 两阶段 map-reduce 预测
type Forecaster struct {
	llm    llm.Completer
	cfg    Config
	policy *bluemonday.Policy
	now    func() time.Time
}

// New 创建预测器
func New(c llm.Completer, cfg Config) *Forecaster {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	return &Forecaster{
		llm:    c,
		cfg:    cfg,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

// compactItem 发送给模型的精简条目
type compactItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
	Time    string `json:"time"`
	Note    string `json:"note"`
}

// Forecast 先分块摘要再合并；coverage_count 为截断后实际参与的条目数
func (f *Forecaster) Forecast(ctx context.Context, items []model.Item, horizonDays int) (*model.ForecastDocument, error) {
	horizonDays = f.horizon(horizonDays)
	total := len(f.capItems(items))

	partials, err := f.SummarizeChunks(ctx, items, horizonDays)
	if err != nil {
		return nil, err
	}
	return f.ReduceForecast(ctx, partials, horizonDays, total)
}

// SummarizeChunks MAP 阶段：每个分块一次请求并行执行，任一分块失败即取消其余请求
func (f *Forecaster) SummarizeChunks(ctx context.Context, items []model.Item, horizonDays int) ([]model.ChunkSummary, error) {
	horizonDays = f.horizon(horizonDays)
	compact := f.compact(f.capItems(items))
	chunks := chunk(compact, f.cfg.ChunkSize)
	logger.Log.Infof("分块摘要: %d 条, %d 个分块", len(compact), len(chunks))

	results := make([]model.ChunkSummary, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range chunks {
		i, group := i, group
		g.Go(func() error {
			summary, err := f.summarizeChunk(gctx, horizonDays, group)
			if err != nil {
				return &ChunkError{Index: i, Err: err}
			}
			results[i] = *summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Log.Errorf("分块摘要失败: %v", err)
		return nil, err
	}
	return results, nil
}

func (f *Forecaster) summarizeChunk(ctx context.Context, horizonDays int, group []compactItem) (*model.ChunkSummary, error) {
	prompt, err := buildMapPrompt(horizonDays, group)
	if err != nil {
		return nil, err
	}

	text, err := f.llm.Complete(ctx, llm.Request{
		Model:       f.cfg.FastModel,
		System:      systemPrompt,
		User:        prompt,
		Temperature: mapTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	body := llm.StripFence(text)
	if !strings.HasPrefix(body, "{") {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	var summary model.ChunkSummary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &summary, nil
}

// ReduceForecast REDUCE 阶段：合并所有分块摘要并修正数值字段
func (f *Forecaster) ReduceForecast(ctx context.Context, partials []model.ChunkSummary, horizonDays, total int) (*model.ForecastDocument, error) {
	horizonDays = f.horizon(horizonDays)
	prompt, err := buildReducePrompt(horizonDays, partials)
	if err != nil {
		return nil, err
	}

	text, err := f.llm.Complete(ctx, llm.Request{
		Model:       f.cfg.FinalModel,
		System:      systemPrompt,
		User:        prompt,
		Temperature: reduceTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(text)
	if err != nil {
		return nil, err
	}
	f.normalize(doc, total)
	return doc, nil
}

// parseDocument 先整体解析，失败时截取最外层 {...} 再试一次
func parseDocument(text string) (*model.ForecastDocument, error) {
	text = strings.TrimSpace(text)
	var doc model.ForecastDocument
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &doc); err == nil {
			return &doc, nil
		}
	}

	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first < 0 || last < first {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidFinalDocument)
	}
	doc = model.ForecastDocument{}
	if err := json.Unmarshal([]byte(text[first:last+1]), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFinalDocument, err)
	}
	return &doc, nil
}

func (f *Forecaster) normalize(doc *model.ForecastDocument, total int) {
	if strings.TrimSpace(doc.AsOfJST) == "" {
		doc.AsOfJST = f.now().In(jst).Format(jstLayout)
	}
	doc.CoverageCount = total

	if doc.TopThemes == nil {
		doc.TopThemes = []string{}
	}
	if doc.Signals == nil {
		doc.Signals = []model.Signal{}
	}
	for i := range doc.Signals {
		doc.Signals[i].Confidence = model.Clamp01(doc.Signals[i].Confidence)
	}
	if doc.Scenarios == nil {
		doc.Scenarios = []model.Scenario{}
	}
	for i := range doc.Scenarios {
		doc.Scenarios[i].Probability = model.Clamp01(doc.Scenarios[i].Probability)
	}
	if doc.RiskLens.ClimateSignals == nil {
		doc.RiskLens.ClimateSignals = []string{}
	}
	if doc.RiskLens.EnvironmentalRisks == nil {
		doc.RiskLens.EnvironmentalRisks = []string{}
	}
	doc.ConfidenceOverall = model.Clamp01(doc.ConfidenceOverall)
}

func (f *Forecaster) horizon(days int) int {
	if days <= 0 {
		return f.cfg.HorizonDays
	}
	return days
}

func (f *Forecaster) capItems(items []model.Item) []model.Item {
	if len(items) > f.cfg.MaxItems {
		return items[:f.cfg.MaxItems]
	}
	return items
}

// compact 只保留模型需要的字段，摘要去掉 HTML
func (f *Forecaster) compact(items []model.Item) []compactItem {
	out := make([]compactItem, 0, len(items))
	for _, it := range items {
		note := it.AI
		if note == "" {
			note = it.Note
		}
		out = append(out, compactItem{
			Title:   it.Title,
			Summary: f.plainText(it.Summary),
			Source:  it.Source,
			Time:    it.Time,
			Note:    note,
		})
	}
	return out
}

func (f *Forecaster) plainText(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
