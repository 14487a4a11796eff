package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/iWorld-y/news_hud/app/hud/internal/server"
	"github.com/iWorld-y/news_hud/app/hud/pkg/config"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

func main() {
	confPath := flag.String("conf", "configs/config.yaml", "config path")
	feedsFlag := flag.String("feeds", "", "comma separated feed urls, defaults to the configured feeds")
	horizon := flag.Int("horizon", 0, "forecast horizon in days")
	out := flag.String("out", "", "write the forecast JSON to this file instead of stdout")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动预测任务...")

	var urls []string
	if *feedsFlag != "" {
		urls = strings.Split(*feedsFlag, ",")
	} else {
		for _, f := range cfg.Feeds {
			urls = append(urls, f.URL)
		}
	}
	if len(urls) == 0 {
		logger.Log.Fatal("配置错误: 未设置订阅源 (feeds)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 3. 组装组件
	c, err := server.NewComponents(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("初始化失败: %v", err)
	}

	// 4. 聚合
	res := c.Aggregator.Aggregate(ctx, urls)
	if len(res.Items) == 0 {
		logger.Log.Fatal("没有可用的新闻条目")
	}
	items := make([]model.Item, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, it.Item)
	}

	// 5. 预测
	doc, err := c.Forecaster.Forecast(ctx, items, *horizon)
	if err != nil {
		logger.Log.Fatalf("预测失败: %v", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		logger.Log.Fatalf("序列化失败: %v", err)
	}
	if *out == "" {
		os.Stdout.Write(append(data, '\n'))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Log.Fatalf("写入文件失败: %v", err)
	}
	logger.Log.Infof("预测已写入 %s (覆盖 %d 条)", *out, doc.CoverageCount)
}
