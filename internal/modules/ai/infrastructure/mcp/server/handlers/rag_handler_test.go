package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	aiRequest "koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsk struct {
	got aiRequest.AskRequest
	err error
}

func (f *fakeAsk) Ask(ctx context.Context, req aiRequest.AskRequest) (*respond.AskRespond, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &respond.AskRespond{
		QueryLogID: 7,
		Answer:     "Restart with systemctl.",
		Confidence: 0.8,
		Hits: []respond.AskHit{
			{Rank: 1, ChunkID: 11, Domain: "DEV", Score: 0.91, Text: "Run systemctl\nrestart koo."},
		},
	}, nil
}

type fakeIngest struct {
	got aiRequest.IngestRequest
}

func (f *fakeIngest) Ingest(_ context.Context, req aiRequest.IngestRequest) (*respond.IngestRespond, error) {
	f.got = req
	return &respond.IngestRespond{DocumentID: 3, Outcome: "created", ChunkCount: 2}, nil
}

func (f *fakeIngest) IngestSource(context.Context, source.Spec, bool) (*pipeline.IngestResult, error) {
	return nil, errors.New("unused")
}

func (f *fakeIngest) DeleteDocument(context.Context, int64) error { return nil }

type fakeAsync struct {
	got aiRequest.IngestRequest
}

func (f *fakeAsync) Enqueue(_ context.Context, req aiRequest.IngestRequest) (*respond.AsyncIngestRespond, error) {
	f.got = req
	return &respond.AsyncIngestRespond{RequestID: "r-1", Key: "RAW_TEXT:" + req.SourceID}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleAsk(t *testing.T) {
	ask := &fakeAsk{}
	h := NewRAGToolHandler(ask, &fakeIngest{}, &fakeAsync{}, time.Minute)

	res, err := h.handleAsk(context.Background(), callRequest("rag_ask", map[string]any{"question": "restart?", "top_k": 3}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "restart?", ask.got.Question)
	assert.Equal(t, 3, ask.got.TopK)

	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, "Restart with systemctl.\n"))
	assert.Contains(t, text, "1. [DEV] chunk_id=11 score=0.9100 Run systemctl restart koo.")
	assert.Contains(t, text, "query_log_id=7")

	res, err = h.handleAsk(context.Background(), callRequest("rag_ask", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	h = NewRAGToolHandler(&fakeAsk{err: errors.New("boom")}, nil, nil, time.Minute)
	res, err = h.handleAsk(context.Background(), callRequest("rag_ask", map[string]any{"question": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleIngestText(t *testing.T) {
	ing, async := &fakeIngest{}, &fakeAsync{}
	h := NewRAGToolHandler(&fakeAsk{}, ing, async, 0)

	res, err := h.handleIngestText(context.Background(), callRequest("rag_ingest_text", map[string]any{
		"domain": "CS", "source_id": "faq", "content": "# Q\nA", "title": "FAQ",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, aiRequest.IngestRequest{Domain: "CS", SourceType: "RAW_TEXT", SourceID: "faq", Title: "FAQ", Content: "# Q\nA"}, ing.got)
	assert.Equal(t, "document_id=3 outcome=created chunks=2 unchanged=false", resultText(t, res))

	res, err = h.handleIngestText(context.Background(), callRequest("rag_ingest_text", map[string]any{
		"domain": "DEV", "source_id": "n", "content": "x", "async": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, "queued request_id=r-1 key=RAW_TEXT:n", resultText(t, res))
	assert.Equal(t, "n", async.got.SourceID)

	res, err = h.handleIngestText(context.Background(), callRequest("rag_ingest_text", map[string]any{"content": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFormatAskResultWithoutHits(t *testing.T) {
	assert.Equal(t, "I don't know.\n", FormatAskResult(&respond.AskRespond{Answer: " I don't know. "}))
}
