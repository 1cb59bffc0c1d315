package source

import (
	"context"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
	"koo/pkg/zlog"

	"go.uber.org/zap"
)

const untitledPage = "(Untitled)"

// NotionBlock 渲染所需的块信息，与 SDK 类型解耦
type NotionBlock struct {
	ID          string
	Type        string
	Text        string
	Emoji       string
	Checked     bool
	Language    string
	ImageURL    string
	HasChildren bool
}

// NotionFetcher Notion 读取接口
type NotionFetcher interface {
	PageTitle(ctx context.Context, pageID string) (string, error)
	// Children 读取一页子块，nextCursor 为空表示没有更多
	Children(ctx context.Context, blockID, cursor string) (blocks []NotionBlock, nextCursor string, err error)
}

// Notion 页面来源：递归读取全部块并渲染为 markdown 风格的文本
type Notion struct {
	api        NotionFetcher
	domain     rag.Domain
	pageID     string
	title      string
	summarizer repository.ImageSummarizer
}

func NewNotion(api NotionFetcher, domain rag.Domain, pageID, title string, summarizer repository.ImageSummarizer) *Notion {
	return &Notion{api: api, domain: domain, pageID: pageID, title: title, summarizer: summarizer}
}

func (n *Notion) Kind() rag.SourceType { return rag.SourceNotion }

func (n *Notion) BuildDocument(ctx context.Context) (rag.SourceDocument, error) {
	if n.pageID == "" {
		return rag.SourceDocument{}, rag.MalformedSourcef("notion page id is empty")
	}
	pageTitle, err := n.api.PageTitle(ctx, n.pageID)
	if err != nil {
		return rag.SourceDocument{}, rag.Stage(rag.StageSource, err)
	}
	title := strings.TrimSpace(pageTitle)
	if title == "" {
		title = strings.TrimSpace(n.title)
	}
	if title == "" {
		title = untitledPage
	}

	blocks, err := n.collect(ctx, n.pageID)
	if err != nil {
		return rag.SourceDocument{}, rag.Stage(rag.StageSource, err)
	}

	return rag.SourceDocument{
		Domain:     n.domain,
		SourceType: rag.SourceNotion,
		SourceID:   n.pageID,
		Title:      &title,
		Content:    strings.TrimSpace(n.render(ctx, blocks)),
	}, nil
}

// collect 深度优先展开子块，父块在前
func (n *Notion) collect(ctx context.Context, blockID string) ([]NotionBlock, error) {
	var out []NotionBlock
	cursor := ""
	for {
		page, next, err := n.api.Children(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			out = append(out, b)
			if b.HasChildren && b.ID != "" {
				children, err := n.collect(ctx, b.ID)
				if err != nil {
					return nil, err
				}
				out = append(out, children...)
			}
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (n *Notion) render(ctx context.Context, blocks []NotionBlock) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var line string
		if b.Type == "image" {
			line = n.imageLine(ctx, b)
		} else {
			line = RenderNotionBlock(b)
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (n *Notion) imageLine(ctx context.Context, b NotionBlock) string {
	if n.summarizer == nil || b.ImageURL == "" {
		return ""
	}
	summary, err := n.summarizer.SummarizeImage(ctx, b.ImageURL)
	if err != nil {
		zlog.Warn("notion image summarize failed", zap.String("block_id", b.ID), zap.Error(err))
		return ""
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}
	return "### Image content\n" + summary
}

// RenderNotionBlock 单个块转为一行文本，返回空串表示丢弃；图片块由调用方处理
func RenderNotionBlock(b NotionBlock) string {
	switch b.Type {
	case "image", "video", "file", "pdf", "audio", "bookmark", "embed", "link_preview", "link_to_page":
		return ""
	case "divider":
		return "---"
	case "code":
		code := strings.TrimRight(b.Text, " \t\r\n")
		if code == "" {
			return ""
		}
		return "```" + b.Language + "\n" + code + "\n```"
	}

	text := strings.TrimSpace(b.Text)
	if text == "" {
		return ""
	}
	switch b.Type {
	case "heading_1":
		return "# " + text
	case "heading_2":
		return "## " + text
	case "heading_3":
		return "### " + text
	case "quote":
		return "> " + text
	case "callout":
		if b.Emoji != "" {
			return b.Emoji + " " + text
		}
		return text
	case "toggle", "bulleted_list_item":
		return "- " + text
	case "numbered_list_item":
		return "1. " + text
	case "to_do":
		if b.Checked {
			return "- [x] " + text
		}
		return "- [ ] " + text
	default:
		return text
	}
}
