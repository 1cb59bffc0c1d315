package llm

import (
	"context"
	"errors"
	"testing"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingModel struct {
	input []*schema.Message
	reply *schema.Message
	err   error
}

func (r *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	r.input = input
	return r.reply, r.err
}

func (r *recordingModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		hits int
		want rag.Answer
	}{
		{
			name: "plain json",
			raw:  `{"answer":"use make","sources":[1,2],"confidence":0.8}`,
			hits: 2,
			want: rag.Answer{Answer: "use make", Sources: []int{1, 2}, Confidence: 0.8},
		},
		{
			name: "fenced with prose",
			raw:  "Here you go:\n```json\n{\"answer\": \"a {braced} answer\", \"sources\": [\"2\"], \"confidence\": \"0.4\"}\n```",
			hits: 3,
			want: rag.Answer{Answer: "a {braced} answer", Sources: []int{2}, Confidence: 0.4},
		},
		{
			name: "out of range sources dropped and confidence clamped",
			raw:  `{"answer":"x","sources":[0,1,1,5,-2],"confidence":3}`,
			hits: 2,
			want: rag.Answer{Answer: "x", Sources: []int{1}, Confidence: 1},
		},
		{
			name: "not json",
			raw:  "  I don't know.  ",
			hits: 1,
			want: rag.Answer{Answer: "I don't know.", Sources: []int{}},
		},
		{
			name: "broken json",
			raw:  `{"answer": "x"`,
			hits: 1,
			want: rag.Answer{Answer: `{"answer": "x"`, Sources: []int{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAnswer(tt.raw, tt.hits))
		})
	}
}

func TestChatAnswerer_Answer(t *testing.T) {
	rm := &recordingModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: `{"answer":"restart the worker","sources":[1],"confidence":0.9}`,
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens: 120, CompletionTokens: 12, TotalTokens: 132,
		}},
	}}
	a, err := NewChatAnswerer(rm, "", "")
	require.NoError(t, err)

	pc := rag.PromptContext{
		Text: "[1] chunk_id=7 score=0.9000 context_id=0\nrestart the worker with {json} args\n",
		Hits: []rag.RetrievalHit{{ChunkID: 7}},
	}
	ans, usage, err := a.Answer(context.Background(), "how to fix?", pc)
	require.NoError(t, err)
	assert.Equal(t, "restart the worker", ans.Answer)
	assert.Equal(t, []int{1}, ans.Sources)
	assert.Equal(t, rag.Usage{InputTokens: 120, OutputTokens: 12}, usage)

	require.Len(t, rm.input, 2)
	assert.Equal(t, schema.System, rm.input[0].Role)
	assert.Contains(t, rm.input[1].Content, "how to fix?")
	assert.Contains(t, rm.input[1].Content, "restart the worker with {json} args")
}

func TestChatAnswerer_NoUsageMeta(t *testing.T) {
	rm := &recordingModel{reply: &schema.Message{Role: schema.Assistant, Content: "plain"}}
	a, err := NewChatAnswerer(rm, "", "")
	require.NoError(t, err)

	ans, usage, err := a.Answer(context.Background(), "q", rag.PromptContext{})
	require.NoError(t, err)
	assert.Equal(t, "plain", ans.Answer)
	assert.Zero(t, usage)
}

func TestChatAnswerer_ModelError(t *testing.T) {
	rm := &recordingModel{err: errors.New("connection refused")}
	a, err := NewChatAnswerer(rm, "", "")
	require.NoError(t, err)

	_, _, err = a.Answer(context.Background(), "q", rag.PromptContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrUpstream)

	var se *rag.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, rag.StageAnswer, se.Stage)
}

func TestNewChatAnswerer_Validation(t *testing.T) {
	_, err := NewChatAnswerer(nil, "", "")
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = NewChatAnswerer(NewMockChatModel(), "", "Question: {question}")
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestMockChatModel(t *testing.T) {
	a, err := NewChatAnswerer(NewMockChatModel(), "", "")
	require.NoError(t, err)

	pc := rag.PromptContext{
		Text: "[1] chunk_id=3 score=0.5000 context_id=1\nDeploy with helm\nmore\n",
		Hits: []rag.RetrievalHit{{ChunkID: 3}},
	}
	ans, usage, err := a.Answer(context.Background(), "deploy?", pc)
	require.NoError(t, err)
	assert.Equal(t, "From context [1]: Deploy with helm", ans.Answer)
	assert.Equal(t, []int{1}, ans.Sources)
	assert.Greater(t, usage.InputTokens, 0)

	ans, _, err = a.Answer(context.Background(), "deploy?", rag.PromptContext{})
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)
}

func TestVisionSummarizer(t *testing.T) {
	rm := &recordingModel{reply: &schema.Message{Role: schema.Assistant, Content: " an architecture diagram "}}
	s := NewVisionSummarizer(rm)

	out, err := s.SummarizeImage(context.Background(), "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "an architecture diagram", out)
	require.Len(t, rm.input, 1)
	require.Len(t, rm.input[0].MultiContent, 2)
	assert.Equal(t, "https://example.com/a.png", rm.input[0].MultiContent[1].ImageURL.URL)

	_, err = s.SummarizeImage(context.Background(), " ")
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestNewChatModelFromConfig(t *testing.T) {
	conf := config.Default()

	conf.AIConfig.ChatModel.Provider = "mock"
	cm, meta, err := NewChatModelFromConfig(context.Background(), conf)
	require.NoError(t, err)
	assert.NotNil(t, cm)
	assert.Equal(t, "mock", meta.Provider)

	conf.AIConfig.ChatModel.Provider = "nope"
	_, _, err = NewChatModelFromConfig(context.Background(), conf)
	assert.ErrorIs(t, err, rag.ErrValidation)

	conf.AIConfig.ChatModel.Provider = "ollama"
	conf.AIConfig.ChatModel.Model = ""
	_, _, err = NewChatModelFromConfig(context.Background(), conf)
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, _, err = NewChatModelFromConfig(context.Background(), nil)
	assert.ErrorIs(t, err, rag.ErrValidation)
}
