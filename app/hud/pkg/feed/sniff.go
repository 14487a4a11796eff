package feed

import "regexp"

// Kind Feed 方言
type Kind string

const (
	KindRSS  Kind = "rss"
	KindAtom Kind = "atom"
	KindRDF  Kind = "rdf"
	KindXML  Kind = "xml" // 无法识别
)

var (
	rssTag  = regexp.MustCompile(`(?i)<\s*rss[\s>]`)
	atomTag = regexp.MustCompile(`(?i)<\s*feed[\s>]`)
	rdfTag  = regexp.MustCompile(`(?i)<\s*rdf:RDF[\s>]`)
)

// Sniff 通过顶层标签判断方言，只做标签匹配，不做 XML 校验
func Sniff(xmlText string) Kind {
	switch {
	case rssTag.MatchString(xmlText):
		return KindRSS
	case atomTag.MatchString(xmlText):
		return KindAtom
	case rdfTag.MatchString(xmlText):
		return KindRDF
	default:
		return KindXML
	}
}

// ContentType 返回方言对应的响应类型，未知方言返回空串
func (k Kind) ContentType() string {
	switch k {
	case KindRSS:
		return "application/rss+xml; charset=utf-8"
	case KindAtom:
		return "application/atom+xml; charset=utf-8"
	default:
		return ""
	}
}
