package source

import (
	"context"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
)

// Source 来源适配器：把外部内容转换为待摄取文档
type Source interface {
	Kind() rag.SourceType
	BuildDocument(ctx context.Context) (rag.SourceDocument, error)
}

// Spec 描述一个待构建的来源，Content 只对 RAW_TEXT 有意义
type Spec struct {
	Domain     rag.Domain
	SourceType rag.SourceType
	SourceID   string
	Title      string
	Content    string
}

// Factory 按来源类型创建适配器，Notion/Slack 客户端按需创建
type Factory struct {
	notionToken    string
	notionPageSize int
	slackToken     string
	slackLimit     int
	summarizer     repository.ImageSummarizer

	newNotion func(token string, pageSize int) NotionFetcher
	newSlack  func(token string) SlackFetcher
}

// FactoryOptions 来源工厂的配置
type FactoryOptions struct {
	NotionToken    string
	NotionPageSize int
	SlackToken     string
	SlackPageLimit int
	// Summarizer 非空时 Notion 图片块会被总结为文字
	Summarizer repository.ImageSummarizer
}

func NewFactory(opts FactoryOptions) *Factory {
	return &Factory{
		notionToken:    strings.TrimSpace(opts.NotionToken),
		notionPageSize: opts.NotionPageSize,
		slackToken:     strings.TrimSpace(opts.SlackToken),
		slackLimit:     opts.SlackPageLimit,
		summarizer:     opts.Summarizer,
		newNotion:      NewNotionAPIFetcher,
		newSlack:       NewSlackAPIFetcher,
	}
}

// New 创建适配器；GITHUB 等没有连接器的类型返回 Validation 错误
func (f *Factory) New(spec Spec) (Source, error) {
	st, err := rag.ParseSourceType(string(spec.SourceType))
	if err != nil {
		return nil, err
	}
	domain, err := rag.ParseDomain(string(spec.Domain))
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(spec.SourceID)

	switch st {
	case rag.SourceRawText:
		return NewRawText(domain, id, spec.Title, spec.Content), nil
	case rag.SourceFile:
		return NewFile(domain, id), nil
	case rag.SourceNotion:
		if f.notionToken == "" {
			return nil, rag.MalformedSourcef("notion api token is not set")
		}
		return NewNotion(f.newNotion(f.notionToken, f.notionPageSize), domain, id, spec.Title, f.summarizer), nil
	case rag.SourceSlack:
		if f.slackToken == "" {
			return nil, rag.MalformedSourcef("slack bot token is not set")
		}
		return NewSlack(f.newSlack(f.slackToken), domain, id, spec.Title, f.slackLimit), nil
	default:
		return nil, rag.Validationf("no connector for source type %s", st)
	}
}

// RawText 直接给定内容的来源
type RawText struct {
	domain  rag.Domain
	id      string
	title   string
	content string
}

func NewRawText(domain rag.Domain, sourceID, title, content string) *RawText {
	return &RawText{domain: domain, id: sourceID, title: title, content: content}
}

func (r *RawText) Kind() rag.SourceType { return rag.SourceRawText }

func (r *RawText) BuildDocument(_ context.Context) (rag.SourceDocument, error) {
	doc := rag.SourceDocument{
		Domain:     r.domain,
		SourceType: rag.SourceRawText,
		SourceID:   r.id,
		Title:      optionalTitle(r.title),
		Content:    r.content,
	}
	return doc, doc.Validate()
}

func optionalTitle(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
