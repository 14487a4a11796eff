package feed

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"

	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

// Document 规范化后的 Feed
type Document struct {
	Type  Kind         `json:"type"`
	Title string       `json:"title"`
	Link  string       `json:"link"`
	Items []model.Item `json:"items"`
}

// ParseError 已识别方言但 XML 无法解析
type ParseError struct {
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s feed: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type mapper func(xmlText string) (*Document, error)

var mappers = map[Kind]mapper{
	KindRSS:  normalizeRSS,
	KindAtom: normalizeAtom,
	KindRDF:  normalizeRDF,
}

// Normalize 识别方言并映射为统一条目。未知方言返回空文档而不是错误
func Normalize(xmlText string) (*Document, error) {
	kind := Sniff(xmlText)
	m, ok := mappers[kind]
	if !ok {
		return &Document{Type: KindXML, Items: []model.Item{}}, nil
	}

	doc, err := m(xmlText)
	if err != nil {
		return nil, &ParseError{Kind: kind, Err: err}
	}
	doc.Type = kind
	return doc, nil
}

func normalizeRSS(xmlText string) (*Document, error) {
	f, err := (&rss.Parser{}).Parse(strings.NewReader(xmlText))
	if err != nil {
		return nil, err
	}

	source := clean(f.Title)
	doc := &Document{Title: source, Link: clean(f.Link), Items: make([]model.Item, 0, len(f.Items))}
	for _, it := range f.Items {
		doc.Items = append(doc.Items, model.Item{
			Title:   clean(it.Title),
			URL:     first(it.Link, guidValue(it.GUID)),
			Time:    first(it.PubDate, extValue(it.Extensions, "dc", "date")),
			Summary: first(it.Description, it.Content),
			Image: first(
				enclosureURL(it.Enclosure),
				extAttr(it.Extensions, "media", "thumbnail", "url"),
				extAttr(it.Extensions, "media", "content", "url"),
			),
			Source: source,
		})
	}
	return doc, nil
}

func normalizeAtom(xmlText string) (*Document, error) {
	f, err := (&atom.Parser{}).Parse(strings.NewReader(xmlText))
	if err != nil {
		return nil, err
	}

	source := clean(f.Title)
	doc := &Document{Title: source, Link: atomLink(f.Links), Items: make([]model.Item, 0, len(f.Entries))}
	for _, e := range f.Entries {
		var content string
		if e.Content != nil {
			content = e.Content.Value
		}
		doc.Items = append(doc.Items, model.Item{
			Title:   clean(e.Title),
			URL:     first(atomLink(e.Links), e.ID),
			Time:    first(e.Updated, e.Published),
			Summary: first(e.Summary, content),
			Source:  source,
		})
	}
	return doc, nil
}

// normalizeRDF RSS 1.0：条目与 channel 同级，gofeed 的 rss 解析器会将其并入 Items
func normalizeRDF(xmlText string) (*Document, error) {
	f, err := (&rss.Parser{}).Parse(strings.NewReader(xmlText))
	if err != nil {
		return nil, err
	}

	source := clean(f.Title)
	doc := &Document{Title: source, Link: clean(f.Link), Items: make([]model.Item, 0, len(f.Items))}
	for _, it := range f.Items {
		doc.Items = append(doc.Items, model.Item{
			Title:   clean(it.Title),
			URL:     first(it.Link, guidValue(it.GUID)),
			Time:    first(extValue(it.Extensions, "dc", "date"), it.PubDate),
			Summary: clean(it.Description),
			Source:  source,
		})
	}
	return doc, nil
}

// atomLink 优先 rel=alternate，其次任意带 href 的链接
func atomLink(links []*atom.Link) string {
	for _, l := range links {
		if l != nil && l.Rel == "alternate" && clean(l.Href) != "" {
			return clean(l.Href)
		}
	}
	for _, l := range links {
		if l != nil && clean(l.Href) != "" {
			return clean(l.Href)
		}
	}
	return ""
}

func guidValue(g *rss.GUID) string {
	if g == nil {
		return ""
	}
	return g.Value
}

func enclosureURL(e *rss.Enclosure) string {
	if e == nil {
		return ""
	}
	return e.URL
}

func extValue(exts ext.Extensions, prefix, name string) string {
	if list := exts[prefix][name]; len(list) > 0 {
		return list[0].Value
	}
	return ""
}

func extAttr(exts ext.Extensions, prefix, name, attr string) string {
	if list := exts[prefix][name]; len(list) > 0 {
		return list[0].Attrs[attr]
	}
	return ""
}

// first 返回第一个非空值（去除首尾空白）
func first(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
