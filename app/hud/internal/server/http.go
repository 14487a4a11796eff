package server

import (
	"context"
	"io"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/news_hud/app/hud/internal/conf"
	"github.com/iWorld-y/news_hud/app/hud/internal/service"
)

// 请求体上限
const maxBodyBytes = 10 << 20

// NewHTTPServer 注册 /api 路由
func NewHTTPServer(c *conf.Server, s *service.HudService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(recovery.WithHandler(func(ctx context.Context, req, err interface{}) error {
				log.NewHelper(logger).WithContext(ctx).Errorf("panic recovered: %v", err)
				return errInternal
			})),
		),
		http.ErrorEncoder(errorEncoder),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			}
		}
	}

	srv := http.NewServer(opts...)
	h := &handler{svc: s}

	r := srv.Route("/")
	r.GET("/api/rss", h.rss)
	r.GET("/api/aggregate", h.aggregate)
	r.POST("/api/annotate", h.annotate)
	r.POST("/api/forecast", h.forecast)
	r.GET("/api/feeds", h.feeds)

	return srv
}

type handler struct {
	svc *service.HudService
}

func (h *handler) rss(ctx http.Context) error {
	q := ctx.Query()
	m := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return h.svc.RSS(c, q.Get("url"), q.Get("format"))
	})
	out, err := m(ctx, nil)
	if err != nil {
		return err
	}
	p := out.(*service.Payload)
	return ctx.Blob(200, p.ContentType, p.Body)
}

func (h *handler) aggregate(ctx http.Context) error {
	q := ctx.Query()
	m := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return h.svc.Aggregate(c, q.Get("feeds"), q.Get("format"))
	})
	out, err := m(ctx, nil)
	if err != nil {
		return err
	}
	p := out.(*service.Payload)
	return ctx.Blob(200, p.ContentType, p.Body)
}

func (h *handler) annotate(ctx http.Context) error {
	body, err := readBody(ctx)
	if err != nil {
		return err
	}
	req, err := service.DecodeAnnotate(body)
	if err != nil {
		return err
	}
	m := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
		return h.svc.Annotate(c, in.(*service.AnnotateRequest))
	})
	out, err := m(ctx, req)
	if err != nil {
		return err
	}
	return ctx.JSON(200, out)
}

func (h *handler) forecast(ctx http.Context) error {
	body, err := readBody(ctx)
	if err != nil {
		return err
	}
	req, err := service.DecodeForecast(body)
	if err != nil {
		return err
	}
	m := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
		return h.svc.Forecast(c, in.(*service.ForecastRequest))
	})
	out, err := m(ctx, req)
	if err != nil {
		return err
	}
	return ctx.JSON(200, out)
}

func (h *handler) feeds(ctx http.Context) error {
	return ctx.JSON(200, h.svc.Feeds(ctx))
}

func readBody(ctx http.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, &service.ValidationError{Field: "body", Message: "unreadable body"}
	}
	return body, nil
}
