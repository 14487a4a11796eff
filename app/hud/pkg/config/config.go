package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体，yaml 标签供命令行加载，json 标签供 kratos config 扫描
type Config struct {
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Fetch       FetchConfig       `yaml:"fetch" json:"fetch"`
	Forecast    ForecastConfig    `yaml:"forecast" json:"forecast"`
	Annotate    AnnotateConfig    `yaml:"annotate" json:"annotate"`
	Feeds       []Feed            `yaml:"feeds" json:"feeds"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	FastModel  string `yaml:"fast_model" json:"fast_model"`   // 分块摘要、标题注解
	FinalModel string `yaml:"final_model" json:"final_model"` // 最终合并
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps" json:"qps"`
	RPM int `yaml:"rpm" json:"rpm"`
}

// CacheConfig Feed 缓存配置
type CacheConfig struct {
	TTL        string `yaml:"ttl" json:"ttl"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

// FetchConfig 抓取配置
type FetchConfig struct {
	Timeout   string `yaml:"timeout" json:"timeout"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	MaxBytes  int64  `yaml:"max_bytes" json:"max_bytes"`
}

// ForecastConfig 预测流水线配置
type ForecastConfig struct {
	MaxItems    int `yaml:"max_items" json:"max_items"`
	ChunkSize   int `yaml:"chunk_size" json:"chunk_size"`
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// AnnotateConfig 标题注解配置
type AnnotateConfig struct {
	CacheTTL     string `yaml:"cache_ttl" json:"cache_ttl"`
	FetchArticle bool   `yaml:"fetch_article" json:"fetch_article"`
}

// Feed 默认订阅源
type Feed struct {
	Source string `yaml:"source" json:"source"`
	URL    string `yaml:"url" json:"url"`
}

// LoadConfig 从指定路径加载配置。兼容服务端配置文件（配置位于 hud 节点下）
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = expandEnv(data)

	var wrapped struct {
		Hud *Config `yaml:"hud"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}

	cfg := wrapped.Hud
	if cfg == nil {
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.Defaults()

	return cfg, nil
}

var placeholder = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// expandEnv 解析 ${NAME} / ${NAME:default} 占位符，与 kratos config 的写法一致
func expandEnv(data []byte) []byte {
	return placeholder.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := placeholder.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(sub[1])); ok {
			return []byte(v)
		}
		return sub[2]
	})
}

// Defaults 填充未配置的字段
func (c *Config) Defaults() {
	if c.LLM.FastModel == "" {
		c.LLM.FastModel = "gpt-4o-mini"
	}
	if c.LLM.FinalModel == "" {
		c.LLM.FinalModel = "gpt-4o"
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 10
	}
	if c.Forecast.MaxItems <= 0 {
		c.Forecast.MaxItems = 600
	}
	if c.Forecast.ChunkSize <= 0 {
		c.Forecast.ChunkSize = 60
	}
	if c.Forecast.HorizonDays <= 0 {
		c.Forecast.HorizonDays = 14
	}
}

// LLMTimeout 返回 LLM 请求超时
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// CacheTTL 返回 Feed 缓存的新鲜期
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 60*time.Second)
}

// FetchTimeout 返回 Feed 抓取超时
func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, 20*time.Second)
}

// AnnotateCacheTTL 返回注解缓存有效期
func (c *Config) AnnotateCacheTTL() time.Duration {
	return parseDuration(c.Annotate.CacheTTL, time.Hour)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
