package source

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
)

// notionAPIFetcher 基于 jomei/notionapi 的实现
type notionAPIFetcher struct {
	client   *notionapi.Client
	pageSize int
}

func NewNotionAPIFetcher(token string, pageSize int) NotionFetcher {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &notionAPIFetcher{client: notionapi.NewClient(notionapi.Token(token)), pageSize: pageSize}
}

func (f *notionAPIFetcher) PageTitle(ctx context.Context, pageID string) (string, error) {
	page, err := f.client.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return "", err
	}
	for _, prop := range page.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(tp.Title), nil
		}
	}
	return "", nil
}

func (f *notionAPIFetcher) Children(ctx context.Context, blockID, cursor string) ([]NotionBlock, string, error) {
	resp, err := f.client.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
		StartCursor: notionapi.Cursor(cursor),
		PageSize:    f.pageSize,
	})
	if err != nil {
		return nil, "", err
	}
	out := make([]NotionBlock, 0, len(resp.Results))
	for _, b := range resp.Results {
		out = append(out, convertBlock(b))
	}
	next := ""
	if resp.HasMore {
		next = resp.NextCursor
	}
	return out, next, nil
}

func convertBlock(b notionapi.Block) NotionBlock {
	nb := NotionBlock{
		ID:          string(b.GetID()),
		Type:        string(b.GetType()),
		HasChildren: b.GetHasChildren(),
	}
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		nb.Text = plainText(v.Paragraph.RichText)
	case *notionapi.Heading1Block:
		nb.Text = plainText(v.Heading1.RichText)
	case *notionapi.Heading2Block:
		nb.Text = plainText(v.Heading2.RichText)
	case *notionapi.Heading3Block:
		nb.Text = plainText(v.Heading3.RichText)
	case *notionapi.QuoteBlock:
		nb.Text = plainText(v.Quote.RichText)
	case *notionapi.CalloutBlock:
		nb.Text = plainText(v.Callout.RichText)
		if v.Callout.Icon != nil && v.Callout.Icon.Emoji != nil {
			nb.Emoji = string(*v.Callout.Icon.Emoji)
		}
	case *notionapi.ToggleBlock:
		nb.Text = plainText(v.Toggle.RichText)
	case *notionapi.BulletedListItemBlock:
		nb.Text = plainText(v.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		nb.Text = plainText(v.NumberedListItem.RichText)
	case *notionapi.ToDoBlock:
		nb.Text = plainText(v.ToDo.RichText)
		nb.Checked = v.ToDo.Checked
	case *notionapi.CodeBlock:
		nb.Text = plainText(v.Code.RichText)
		nb.Language = v.Code.Language
	case *notionapi.ImageBlock:
		if v.Image.File != nil {
			nb.ImageURL = v.Image.File.URL
		} else if v.Image.External != nil {
			nb.ImageURL = v.Image.External.URL
		}
	}
	return nb
}

func plainText(items []notionapi.RichText) string {
	var sb strings.Builder
	for _, t := range items {
		if t.PlainText != "" {
			sb.WriteString(t.PlainText)
		} else if t.Text != nil {
			sb.WriteString(t.Text.Content)
		}
	}
	return sb.String()
}
