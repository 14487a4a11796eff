package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/news_hud/app/hud/internal/service"
	"github.com/iWorld-y/news_hud/app/hud/pkg/aggregate"
	"github.com/iWorld-y/news_hud/app/hud/pkg/annotate"
	"github.com/iWorld-y/news_hud/app/hud/pkg/cache"
	"github.com/iWorld-y/news_hud/app/hud/pkg/config"
	"github.com/iWorld-y/news_hud/app/hud/pkg/fetcher"
	"github.com/iWorld-y/news_hud/app/hud/pkg/forecast"
	"github.com/iWorld-y/news_hud/app/hud/pkg/llm"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

// Components 组合根创建的全部组件，缓存只在这里创建
type Components struct {
	Fetcher    *fetcher.Fetcher
	Aggregator *aggregate.Aggregator
	Forecaster *forecast.Forecaster
	Annotator  *annotate.Annotator
	Feeds      []model.Feed
}

// NewComponents 按配置组装抓取、聚合、预测与注解组件
func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	cfg.Defaults()

	feedCache := cache.New[fetcher.Body](cache.Options{
		TTL:        cfg.CacheTTL(),
		MaxEntries: cfg.Cache.MaxEntries,
	})
	f := fetcher.New(fetcher.Config{
		Timeout:   cfg.FetchTimeout(),
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Fetch.UserAgent,
	}, feedCache)

	client, err := llm.New(ctx, llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.FastModel,
		Timeout: cfg.LLMTimeout(),
		QPS:     cfg.Concurrency.QPS,
		RPM:     cfg.Concurrency.RPM,
	})
	if err != nil {
		return nil, err
	}

	var reader annotate.ArticleReader
	if cfg.Annotate.FetchArticle {
		reader = annotate.NewReadabilityReader(cfg.FetchTimeout())
	}
	notes := cache.New[string](cache.Options{TTL: cfg.AnnotateCacheTTL(), MaxEntries: cfg.Cache.MaxEntries})

	feeds := make([]model.Feed, 0, len(cfg.Feeds))
	for _, fd := range cfg.Feeds {
		feeds = append(feeds, model.Feed{Source: fd.Source, URL: fd.URL})
	}

	return &Components{
		Fetcher:    f,
		Aggregator: aggregate.New(f),
		Forecaster: forecast.New(client, forecast.Config{
			FastModel:   cfg.LLM.FastModel,
			FinalModel:  cfg.LLM.FinalModel,
			MaxItems:    cfg.Forecast.MaxItems,
			ChunkSize:   cfg.Forecast.ChunkSize,
			HorizonDays: cfg.Forecast.HorizonDays,
		}),
		Annotator: annotate.New(client, notes, reader, annotate.Config{Model: cfg.LLM.FastModel}),
		Feeds:     feeds,
	}, nil
}

// NewHudService 创建服务实例
func NewHudService(cfg *config.Config, logger log.Logger) (*service.HudService, func(), error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	c, err := NewComponents(context.Background(), cfg)
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init components: %v", err)
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("Cleaning up hud service")
	}
	return service.NewHudService(c.Fetcher, c.Aggregator, c.Forecaster, c.Annotator, c.Feeds, logger), cleanup, nil
}
