package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Signal 预测信号。模型返回的数值字段不可信：非数值的 confidence / window_days 直接丢弃
type Signal struct {
	Headline     string   `json:"headline"`
	WhyItMatters string   `json:"why_it_matters"`
	Region       string   `json:"region,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	WindowDays   *int     `json:"window_days,omitempty"`
}

// UnmarshalJSON 宽松解析数值与文本字段
func (s *Signal) UnmarshalJSON(data []byte) error {
	var aux struct {
		Headline     json.RawMessage `json:"headline"`
		WhyItMatters json.RawMessage `json:"why_it_matters"`
		Region       json.RawMessage `json:"region"`
		Confidence   json.RawMessage `json:"confidence"`
		WindowDays   json.RawMessage `json:"window_days"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.Headline = flexString(aux.Headline)
	s.WhyItMatters = flexString(aux.WhyItMatters)
	s.Region = flexString(aux.Region)
	s.Confidence = numberOrNil(aux.Confidence)
	s.WindowDays = nil
	if f := numberOrNil(aux.WindowDays); f != nil {
		d := int(math.Round(*f))
		s.WindowDays = &d
	}
	return nil
}

// UnmarshalJSON 宽松解析 themes 与 signals
func (c *ChunkSummary) UnmarshalJSON(data []byte) error {
	var aux struct {
		Themes  json.RawMessage `json:"themes"`
		Signals json.RawMessage `json:"signals"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Themes = flexList(aux.Themes)
	c.Signals = flexObjects[Signal](aux.Signals)
	return nil
}

// UnmarshalJSON 宽松解析 probability 与文本字段
func (sc *Scenario) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name        json.RawMessage `json:"name"`
		Description json.RawMessage `json:"description"`
		Probability json.RawMessage `json:"probability"`
		Triggers    json.RawMessage `json:"triggers"`
		Watchlist   json.RawMessage `json:"watchlist"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	sc.Name = flexString(aux.Name)
	sc.Description = flexString(aux.Description)
	sc.Probability = numberOrNil(aux.Probability)
	sc.Triggers = flexList(aux.Triggers)
	sc.Watchlist = flexList(aux.Watchlist)
	return nil
}

// UnmarshalJSON 列表字段接受单个字符串，note 接受列表
func (r *RiskLens) UnmarshalJSON(data []byte) error {
	var aux struct {
		ClimateSignals     json.RawMessage `json:"climate_signals"`
		EnvironmentalRisks json.RawMessage `json:"environmental_risks"`
		Note               json.RawMessage `json:"note"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ClimateSignals = flexList(aux.ClimateSignals)
	r.EnvironmentalRisks = flexList(aux.EnvironmentalRisks)
	r.Note = flexString(aux.Note)
	return nil
}

// UnmarshalJSON 宽松解析全部字段，只要求顶层是对象；coverage_count 之后总会被覆盖
func (d *ForecastDocument) UnmarshalJSON(data []byte) error {
	var aux struct {
		AsOfJST           json.RawMessage `json:"as_of_jst"`
		CoverageCount     json.RawMessage `json:"coverage_count"`
		TopThemes         json.RawMessage `json:"top_themes"`
		Signals           json.RawMessage `json:"signals"`
		Scenarios         json.RawMessage `json:"scenarios_7_14d"`
		RiskLens          json.RawMessage `json:"gaia_lens"`
		Narrative         json.RawMessage `json:"horoscope_narrative"`
		Caveats           json.RawMessage `json:"caveats"`
		ConfidenceOverall json.RawMessage `json:"confidence_overall"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.AsOfJST = flexString(aux.AsOfJST)
	d.CoverageCount = 0
	if f := numberOrNil(aux.CoverageCount); f != nil {
		d.CoverageCount = int(*f)
	}
	d.TopThemes = flexList(aux.TopThemes)
	d.Signals = flexObjects[Signal](aux.Signals)
	d.Scenarios = flexObjects[Scenario](aux.Scenarios)
	d.RiskLens = RiskLens{}
	if isObject(aux.RiskLens) {
		_ = json.Unmarshal(aux.RiskLens, &d.RiskLens)
	} else {
		d.RiskLens.Note = flexString(aux.RiskLens)
	}
	d.Narrative = flexString(aux.Narrative)
	d.Caveats = flexString(aux.Caveats)
	d.ConfidenceOverall = numberOrNil(aux.ConfidenceOverall)
	return nil
}

// Clamp01 将数值限制在 [0,1]，nil 保持 nil
func Clamp01(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := math.Max(0, math.Min(1, *v))
	return &c
}

// numberOrNil 仅接受 JSON 数字
func numberOrNil(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// flexString 字符串原样返回；数组逐项转成文本后按行拼接；其他类型保留 JSON 文本
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if raw[0] == '[' {
		return strings.Join(flexList(raw), "\n")
	}
	return string(raw)
}

// flexList 数组逐项转成文本并丢弃空项；单个标量视为一项
func flexList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		if s := flexString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s := flexString(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// flexObjects 解析对象数组，跳过不是对象的元素；单个对象视为一项
func flexObjects[T any](raw json.RawMessage) []T {
	raw = bytes.TrimSpace(raw)
	var elems []json.RawMessage
	if isObject(raw) {
		elems = []json.RawMessage{raw}
	} else if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		if !isObject(e) {
			continue
		}
		var v T
		if err := json.Unmarshal(e, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
