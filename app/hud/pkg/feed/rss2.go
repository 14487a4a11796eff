package feed

import (
	"bytes"
	"encoding/xml"
	"net/http"

	"github.com/gorilla/feeds"

	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

// EnclosureType enclosure 固定使用的图片类型
const EnclosureType = "image/jpeg"

// Channel RSS 频道信息
type Channel struct {
	Title       string
	Link        string
	Description string
}

// rssDoc 根节点不带命名空间，feeds.ToRss 会附加 xmlns:content
type rssDoc struct {
	XMLName xml.Name       `xml:"rss"`
	Version string         `xml:"version,attr"`
	Channel *feeds.RssFeed `xml:"channel"`
}

// ToRSS2 渲染 RSS 2.0 文档。所有文本由 XML 编码器转义；time 无法解析时省略 pubDate
func ToRSS2(ch Channel, items []model.Item) ([]byte, error) {
	desc := ch.Description
	if desc == "" {
		desc = ch.Title
	}

	f := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: ch.Link},
		Description: desc,
		Items:       make([]*feeds.Item, 0, len(items)),
	}
	for _, it := range items {
		fi := &feeds.Item{
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.URL},
			Description: it.Summary,
		}
		if t, ok := ParseTime(it.Time); ok {
			fi.Created = t.UTC()
		}
		if it.Image != "" {
			// feeds 要求 Length 非空才输出 enclosure
			fi.Enclosure = &feeds.Enclosure{Url: it.Image, Type: EnclosureType, Length: "0"}
		}
		f.Items = append(f.Items, fi)
	}

	channel := (&feeds.Rss{Feed: f}).RssFeed()
	// feeds 输出 RFC1123Z，这里改写成 HTTP 日期格式
	for i, ri := range channel.Items {
		if created := f.Items[i].Created; !created.IsZero() {
			ri.PubDate = created.Format(http.TimeFormat)
		}
	}
	doc := rssDoc{Version: "2.0", Channel: channel}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
