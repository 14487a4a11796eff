package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "Answer in Japanese unless the input is in another language."

const mapPromptTpl = `You are a geopolitical analyst.
Timezone: JST. Horizon: %d days.
Work only from the JSON items below (title, summary, note, time, source).
Reply with one JSON object:
{
  "themes": ["3 to 7 short labels"],
  "signals": [{"headline": "", "why_it_matters": "", "region": "", "confidence": 0.5, "window_days": 7}]
}
region, confidence (0-1) and window_days (integer) are optional. Keep it short and do not repeat yourself.

ITEMS:
%s`

const reducePromptTpl = `You are a geopolitical analyst.
Timezone: JST. Horizon: %d days.
Merge the CHUNK_SUMMARIES below into one near-term world forecast.
Reply with one JSON object with these keys:
as_of_jst (string), coverage_count (int),
top_themes (string[]),
signals ([{headline, why_it_matters, region?, confidence? (0-1), window_days? (int)}]),
scenarios_7_14d ([{name, description, probability (0-1), triggers[], watchlist[]}]),
gaia_lens ({climate_signals: string[], environmental_risks: string[], note: string}),
horoscope_narrative (string),
caveats (string),
confidence_overall (0-1 number).

Rules:
- Use only what the CHUNK_SUMMARIES imply; do not invent facts.
- Stay concise and non-speculative.
- The horoscope narrative is a playful metaphor and confirms nothing.

CHUNK_SUMMARIES:
%s`

func buildMapPrompt(horizonDays int, chunk []compactItem) (string, error) {
	data, err := marshal(chunk)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(mapPromptTpl, horizonDays, data), nil
}

func buildReducePrompt(horizonDays int, partials any) (string, error) {
	data, err := marshal(partials)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(reducePromptTpl, horizonDays, data), nil
}

// marshal 不转义 HTML 字符，提示词更易读
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
