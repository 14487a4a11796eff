package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	aclopenai "github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
)

// Request 一次对话请求
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
	JSON        bool // 要求返回 JSON 对象
}

// Completer 对话补全能力，供上层注入假实现
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// UpstreamError 模型服务调用失败或返回不可用内容
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Config 客户端配置
type Config struct {
	BaseURL string
	APIKey  string
	Model   string // 请求未指定模型时使用
	Timeout time.Duration
	QPS     int
	RPM     int
}

// Client 基于 eino ChatModel 的对话客户端，所有请求共享同一个限流器
type Client struct {
	jsonModel model.BaseChatModel
	textModel model.BaseChatModel
	limiter   *rate.Limiter
}

// New 初始化 LLM。JSON 请求走带 response_format 的实例
func New(ctx context.Context, cfg Config) (*Client, error) {
	jsonModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		ResponseFormat: &aclopenai.ChatCompletionResponseFormat{
			Type: aclopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	textModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	limiter := NewLimiter(cfg.QPS, cfg.RPM)
	logger.Log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", limiter.Limit(), limiter.Burst())

	return NewWithModels(jsonModel, textModel, limiter), nil
}

// NewWithModels 使用已有的模型实例创建客户端
func NewWithModels(jsonModel, textModel model.BaseChatModel, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{jsonModel: jsonModel, textModel: textModel, limiter: limiter}
}

// NewLimiter Limit 为 RPM/60，Burst 为 QPS。RPM 未配置时不限速
func NewLimiter(qps, rpm int) *rate.Limiter {
	if qps <= 0 {
		qps = 1
	}
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, qps)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), qps)
}

// Complete 发送一次请求并返回文本内容，不做重试
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	cm := c.textModel
	if req.JSON {
		cm = c.jsonModel
	}

	var messages []*schema.Message
	if req.System != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.System})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: req.User})

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}

	start := time.Now()
	resp, err := cm.Generate(ctx, messages, opts...)
	if err != nil {
		logger.Log.Errorf("LLM 调用失败 [%s] 耗时 %v: %v", req.Model, time.Since(start), err)
		return "", &UpstreamError{Model: req.Model, Err: err}
	}
	logger.Log.Debugf("LLM 调用完成 [%s] 耗时 %v", req.Model, time.Since(start))

	content := ""
	if resp != nil {
		content = strings.TrimSpace(resp.Content)
	}
	if content == "" {
		return "", &UpstreamError{Model: req.Model, Err: fmt.Errorf("empty response")}
	}
	return content, nil
}

// StripFence 去掉模型偶尔包裹的 markdown 代码块
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
