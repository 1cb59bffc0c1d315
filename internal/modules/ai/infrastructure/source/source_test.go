package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"koo/internal/modules/ai/domain/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawText(t *testing.T) {
	doc, err := NewRawText(rag.DomainCS, "faq-1", "  FAQ ", "hello").BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rag.SourceRawText, doc.SourceType)
	require.NotNil(t, doc.Title)
	assert.Equal(t, "FAQ", *doc.Title)

	doc, err = NewRawText(rag.DomainCS, "faq-2", "", "hello").BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Nil(t, doc.Title)

	_, err = NewRawText(rag.DomainCS, "", "", "hello").BuildDocument(context.Background())
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\nbody\n"), 0o644))

	doc, err := NewFile(rag.DomainDEV, path).BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, doc.SourceID)
	assert.Equal(t, "notes.md", *doc.Title)
	assert.Equal(t, "# Title\nbody\n", doc.Content)

	_, err = NewFile(rag.DomainDEV, filepath.Join(dir, "missing.md")).BuildDocument(context.Background())
	assert.ErrorIs(t, err, rag.ErrMalformedSource)

	_, err = NewFile(rag.DomainDEV, dir).BuildDocument(context.Background())
	assert.ErrorIs(t, err, rag.ErrMalformedSource)

	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0o644))
	_, err = NewFile(rag.DomainDEV, bin).BuildDocument(context.Background())
	assert.ErrorIs(t, err, rag.ErrMalformedSource)
}

func TestRenderNotionBlock(t *testing.T) {
	tests := []struct {
		block NotionBlock
		want  string
	}{
		{NotionBlock{Type: "heading_1", Text: "Intro"}, "# Intro"},
		{NotionBlock{Type: "heading_2", Text: "Setup"}, "## Setup"},
		{NotionBlock{Type: "heading_3", Text: "Step"}, "### Step"},
		{NotionBlock{Type: "paragraph", Text: " plain "}, "plain"},
		{NotionBlock{Type: "paragraph", Text: "  "}, ""},
		{NotionBlock{Type: "quote", Text: "wise"}, "> wise"},
		{NotionBlock{Type: "callout", Text: "note", Emoji: "💡"}, "💡 note"},
		{NotionBlock{Type: "callout", Text: "note"}, "note"},
		{NotionBlock{Type: "toggle", Text: "more"}, "- more"},
		{NotionBlock{Type: "bulleted_list_item", Text: "a"}, "- a"},
		{NotionBlock{Type: "numbered_list_item", Text: "b"}, "1. b"},
		{NotionBlock{Type: "to_do", Text: "done", Checked: true}, "- [x] done"},
		{NotionBlock{Type: "to_do", Text: "todo"}, "- [ ] todo"},
		{NotionBlock{Type: "code", Text: "go test ./...\n", Language: "bash"}, "```bash\ngo test ./...\n```"},
		{NotionBlock{Type: "divider"}, "---"},
		{NotionBlock{Type: "bookmark", Text: "x"}, ""},
		{NotionBlock{Type: "link_to_page"}, ""},
		{NotionBlock{Type: "video"}, ""},
		{NotionBlock{Type: "table_row", Text: "cell"}, "cell"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RenderNotionBlock(tt.block), tt.block.Type)
	}
}

type fakeNotion struct {
	title    string
	children map[string][][]NotionBlock
	err      error
}

func (f *fakeNotion) PageTitle(context.Context, string) (string, error) { return f.title, f.err }

func (f *fakeNotion) Children(_ context.Context, blockID, cursor string) ([]NotionBlock, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	pages := f.children[blockID]
	idx := 0
	if cursor != "" {
		idx = int(cursor[0] - '0')
	}
	if idx >= len(pages) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(pages) {
		next = string(rune('0' + idx + 1))
	}
	return pages[idx], next, nil
}

type fakeSummarizer struct {
	out string
	err error
}

func (f fakeSummarizer) SummarizeImage(context.Context, string) (string, error) { return f.out, f.err }

func TestNotion_BuildDocument(t *testing.T) {
	api := &fakeNotion{
		children: map[string][][]NotionBlock{
			"page": {
				{
					{ID: "h", Type: "heading_1", Text: "Guide"},
					{ID: "t", Type: "toggle", Text: "details", HasChildren: true},
				},
				{
					{ID: "img", Type: "image", ImageURL: "https://x/y.png"},
					{ID: "v", Type: "video"},
					{ID: "p", Type: "paragraph", Text: "end"},
				},
			},
			"t": {{{ID: "c", Type: "bulleted_list_item", Text: "child"}}},
		},
	}

	doc, err := NewNotion(api, rag.DomainDEV, "page", "fallback", fakeSummarizer{out: "a chart"}).BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", *doc.Title)
	assert.Equal(t, rag.SourceNotion, doc.SourceType)
	assert.Equal(t, "# Guide\n- details\n- child\n### Image content\na chart\nend", doc.Content)

	// 没有总结器或总结失败时图片块被丢弃
	doc, err = NewNotion(api, rag.DomainDEV, "page", "", fakeSummarizer{err: errors.New("boom")}).BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, untitledPage, *doc.Title)
	assert.Equal(t, "# Guide\n- details\n- child\nend", doc.Content)

	api.title = "Real Title"
	doc, err = NewNotion(api, rag.DomainDEV, "page", "fallback", nil).BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Real Title", *doc.Title)
}

func TestNotion_FetchErrorIsUpstream(t *testing.T) {
	api := &fakeNotion{err: errors.New("401")}
	_, err := NewNotion(api, rag.DomainDEV, "page", "", nil).BuildDocument(context.Background())
	assert.ErrorIs(t, err, rag.ErrUpstream)
}

func TestRenderSlackTranscript(t *testing.T) {
	msgs := []SlackMessage{
		{Timestamp: "1700000120.000200", User: "U2", Text: "second"},
		{Timestamp: "1700000060.000100", User: "U1", Text: " first "},
		{Timestamp: "1700000090.000000", User: "U3", Text: "joined", SubType: "channel_join"},
		{Timestamp: "1700000100.000000", User: "U3", Text: "left", SubType: "channel_leave"},
		{Timestamp: "1700000110.000000", User: "U4", Text: "  "},
	}
	assert.Equal(t,
		"[2023-11-14T22:14:20Z] U1: first\n[2023-11-14T22:15:20Z] U2: second",
		RenderSlackTranscript(msgs))
	assert.Empty(t, RenderSlackTranscript(nil))
}

type fakeSlack struct {
	pages [][]SlackMessage
	calls int
}

func (f *fakeSlack) History(_ context.Context, _ string, cursor string, _ int) ([]SlackMessage, string, error) {
	f.calls++
	idx := 0
	if cursor != "" {
		idx = int(cursor[0] - '0')
	}
	next := ""
	if idx+1 < len(f.pages) {
		next = string(rune('0' + idx + 1))
	}
	return f.pages[idx], next, nil
}

func TestSlack_BuildDocumentPaginates(t *testing.T) {
	api := &fakeSlack{pages: [][]SlackMessage{
		{{Timestamp: "1700000120", User: "U2", Text: "newer"}},
		{{Timestamp: "1700000060", User: "U1", Text: "older"}},
	}}
	doc, err := NewSlack(api, rag.DomainCS, "C123", "", 0).BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, "C123", doc.SourceID)
	assert.Nil(t, doc.Title)
	assert.Equal(t, "[2023-11-14T22:14:20Z] U1: older\n[2023-11-14T22:15:20Z] U2: newer", doc.Content)
}

func TestFactory(t *testing.T) {
	f := NewFactory(FactoryOptions{})

	src, err := f.New(Spec{Domain: "cs", SourceType: "raw-text", SourceID: "a", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, rag.SourceRawText, src.Kind())

	src, err = f.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceFile, SourceID: "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, rag.SourceFile, src.Kind())

	_, err = f.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceNotion, SourceID: "p"})
	assert.ErrorIs(t, err, rag.ErrMalformedSource)

	_, err = f.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceSlack, SourceID: "c"})
	assert.ErrorIs(t, err, rag.ErrMalformedSource)

	_, err = f.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceGithub, SourceID: "r"})
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = f.New(Spec{Domain: "OPS", SourceType: rag.SourceRawText, SourceID: "r"})
	assert.ErrorIs(t, err, rag.ErrValidation)

	withTokens := NewFactory(FactoryOptions{NotionToken: "n", SlackToken: "s"})
	withTokens.newNotion = func(string, int) NotionFetcher { return &fakeNotion{} }
	withTokens.newSlack = func(string) SlackFetcher { return &fakeSlack{} }
	src, err = withTokens.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceNotion, SourceID: "p"})
	require.NoError(t, err)
	assert.Equal(t, rag.SourceNotion, src.Kind())
	src, err = withTokens.New(Spec{Domain: rag.DomainDEV, SourceType: rag.SourceSlack, SourceID: "c"})
	require.NoError(t, err)
	assert.Equal(t, rag.SourceSlack, src.Kind())
}
