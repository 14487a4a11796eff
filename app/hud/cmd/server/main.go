package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	_ "github.com/go-kratos/kratos/v2/encoding/yaml"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/news_hud/app/hud/internal/conf"
	"github.com/iWorld-y/news_hud/app/hud/internal/server"
	hudconfig "github.com/iWorld-y/news_hud/app/hud/pkg/config"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "news_hud"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 配置文件之外，环境变量用于解析 ${OPENAI_API_KEY} 这类占位符
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
			env.NewSource(),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	if bc.Hud == nil {
		bc.Hud = &hudconfig.Config{}
	}
	bc.Hud.Defaults()

	// 服务端与流水线共用 logrus 输出
	if err := logger.InitLogger(bc.Hud.Log.Level, bc.Hud.Log.File); err != nil {
		panic(err)
	}
	klog := log.With(logger.NewKratosLogger(logger.Log),
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	app, cleanup, err := initApp(bc.Server, bc.Hud, klog)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// initApp 手工组装依赖
func initApp(sc *conf.Server, hc *hudconfig.Config, logger log.Logger) (*kratos.App, func(), error) {
	svc, cleanup, err := server.NewHudService(hc, logger)
	if err != nil {
		return nil, nil, err
	}
	hs := server.NewHTTPServer(sc, svc, logger)
	return newApp(logger, hs), cleanup, nil
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}
