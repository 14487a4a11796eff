package annotate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iWorld-y/news_hud/app/hud/pkg/cache"
	"github.com/iWorld-y/news_hud/app/hud/pkg/llm"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
)

const (
	temperature = 0.5

	// 摘要短于该长度时才去抓正文
	shortSummary = 200
)

// ErrTitleRequired 缺少标题
var ErrTitleRequired = errors.New("title is required")

const systemPrompt = `You explain news headlines briefly and neutrally.
Summarize the headline in Japanese in one or two sentences, then add one plausible angle or implication.`

// Request 待注解的标题及可选上下文
type Request struct {
	Title   string
	Source  string
	Time    string
	Summary string
	URL     string
}

// ArticleReader 抓取文章正文
type ArticleReader interface {
	Excerpt(ctx context.Context, url string) (string, error)
}

// Config 注解配置
type Config struct {
	Model string
}

// Annotator 标题注解，结果按标题缓存
type Annotator struct {
	llm    llm.Completer
	notes  *cache.Store[string]
	reader ArticleReader
	cfg    Config
}

// New reader 为 nil 时不抓正文
func New(c llm.Completer, notes *cache.Store[string], reader ArticleReader, cfg Config) *Annotator {
	return &Annotator{llm: c, notes: notes, reader: reader, cfg: cfg}
}

// Annotate 返回一段简短注解
func (a *Annotator) Annotate(ctx context.Context, req Request) (string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if a.notes != nil {
		if note, ok := a.notes.GetFresh(title); ok {
			logger.Log.Debugf("注解缓存命中 [%s]", title)
			return note, nil
		}
	}

	excerpt := a.excerpt(ctx, req)
	note, err := a.llm.Complete(ctx, llm.Request{
		Model:       a.cfg.Model,
		System:      systemPrompt,
		User:        buildPrompt(title, req, excerpt),
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	if a.notes != nil {
		a.notes.Put(title, note)
	}
	return note, nil
}

// excerpt 摘要过短时补充正文片段，失败忽略
func (a *Annotator) excerpt(ctx context.Context, req Request) string {
	if a.reader == nil || req.URL == "" || utf8.RuneCountInString(req.Summary) >= shortSummary {
		return ""
	}
	text, err := a.reader.Excerpt(ctx, req.URL)
	if err != nil {
		logger.Log.Warnf("抓取正文失败 [%s]: %v", req.URL, err)
		return ""
	}
	return text
}

func buildPrompt(title string, req Request, excerpt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ヘッドライン: %s\n", title)
	if req.Source != "" {
		fmt.Fprintf(&sb, "ソース: %s\n", req.Source)
	}
	if req.Time != "" {
		fmt.Fprintf(&sb, "日時: %s\n", req.Time)
	}
	if req.Summary != "" {
		fmt.Fprintf(&sb, "概要: %s\n", req.Summary)
	}
	if excerpt != "" {
		fmt.Fprintf(&sb, "本文抜粋: %s\n", excerpt)
	}
	sb.WriteString("出力: 80〜140文字で要約し、最後に「— 観点: …」と1行追加して。")
	return sb.String()
}
