package model

// Item 规范化后的新闻条目，所有字段均为字符串且不为 null
type Item struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Time    string `json:"time"` // 原始时间字符串
	Summary string `json:"summary"`
	Image   string `json:"image"`
	Source  string `json:"source"` // 频道标题
	AI      string `json:"ai,omitempty"`
	Note    string `json:"note,omitempty"`
}

// AggregatedItem 聚合结果条目，TS 仅用于排序（毫秒时间戳，无法解析时为 0）
type AggregatedItem struct {
	Item
	TS int64 `json:"_ts"`
}

// Feed 订阅源
type Feed struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// ChunkSummary 单个分块的摘要（MAP 阶段输出）
type ChunkSummary struct {
	Themes  []string `json:"themes"`
	Signals []Signal `json:"signals"`
}

// Scenario 7-14 天情景
type Scenario struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Probability *float64 `json:"probability,omitempty"`
	Triggers    []string `json:"triggers"`
	Watchlist   []string `json:"watchlist"`
}

// RiskLens 主题风险视角
type RiskLens struct {
	ClimateSignals     []string `json:"climate_signals"`
	EnvironmentalRisks []string `json:"environmental_risks"`
	Note               string   `json:"note"`
}

// ForecastDocument 最终预测文档（REDUCE 阶段输出）
type ForecastDocument struct {
	AsOfJST           string     `json:"as_of_jst"`
	CoverageCount     int        `json:"coverage_count"`
	TopThemes         []string   `json:"top_themes"`
	Signals           []Signal   `json:"signals"`
	Scenarios         []Scenario `json:"scenarios_7_14d"`
	RiskLens          RiskLens   `json:"gaia_lens"`
	Narrative         string     `json:"horoscope_narrative"`
	Caveats           string     `json:"caveats"`
	ConfidenceOverall *float64   `json:"confidence_overall,omitempty"`
}
