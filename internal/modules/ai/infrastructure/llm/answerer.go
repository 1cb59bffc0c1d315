package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const DefaultSystemPrompt = "You are koo, a personal assistant.\n" +
	"Answer using ONLY the provided context.\n" +
	"If context is insufficient, say you don't know and ask a clarifying question.\n" +
	"Return JSON matching the output schema: an object with \"answer\" (string), " +
	"\"sources\" (array of context indices) and \"confidence\" (number).\n"

const DefaultUserPrompt = "Question:\n{question}\n\nContext:\n{context}\n\n" +
	"Instructions:\n" +
	"- Write a concise, actionable answer.\n" +
	"- If you used any context items, include their indices in `sources`.\n" +
	"- Set `confidence` between 0 and 1.\n"

type ChatAnswerer struct {
	chatModel model.BaseChatModel
	tpl       prompt.ChatTemplate
}

var _ repository.Answerer = (*ChatAnswerer)(nil)

// NewChatAnswerer 空模板使用默认提示词；用户模板必须包含 {question} 与 {context}
func NewChatAnswerer(cm model.BaseChatModel, systemPrompt, userPrompt string) (*ChatAnswerer, error) {
	if cm == nil {
		return nil, rag.Validationf("chat model is nil")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if strings.TrimSpace(userPrompt) == "" {
		userPrompt = DefaultUserPrompt
	}
	for _, ph := range []string{"{question}", "{context}"} {
		if !strings.Contains(userPrompt, ph) {
			return nil, rag.Validationf("user prompt missing placeholder %s", ph)
		}
	}

	return &ChatAnswerer{
		chatModel: cm,
		tpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userPrompt),
		),
	}, nil
}

func (a *ChatAnswerer) Answer(ctx context.Context, question string, pc rag.PromptContext) (*rag.Answer, rag.Usage, error) {
	messages, err := a.tpl.Format(ctx, map[string]any{
		"question": question,
		"context":  pc.Text,
	})
	if err != nil {
		return nil, rag.Usage{}, rag.Stage(rag.StageAnswer, err)
	}

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, rag.Usage{}, rag.Stage(rag.StageAnswer, err)
	}
	if resp == nil {
		return nil, rag.Usage{}, rag.Stage(rag.StageAnswer, rag.Validationf("empty model response"))
	}

	var usage rag.Usage
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		usage.InputTokens = resp.ResponseMeta.Usage.PromptTokens
		usage.OutputTokens = resp.ResponseMeta.Usage.CompletionTokens
	}

	ans := ParseAnswer(resp.Content, len(pc.Hits))
	return &ans, usage, nil
}

// ParseAnswer 宽松解析模型输出，取第一个 JSON 对象；解析失败时整段文本作为答案
func ParseAnswer(raw string, hitCount int) rag.Answer {
	raw = strings.TrimSpace(raw)
	obj := firstJSONObject(raw)
	if obj == "" {
		return rag.Answer{Answer: raw, Sources: []int{}}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return rag.Answer{Answer: raw, Sources: []int{}}
	}

	out := rag.Answer{Sources: []int{}}
	if s, ok := m["answer"].(string); ok {
		out.Answer = strings.TrimSpace(s)
	} else {
		out.Answer = raw
	}

	seen := make(map[int]struct{})
	if arr, ok := m["sources"].([]any); ok {
		for _, v := range arr {
			n, ok := toNumber(v)
			if !ok {
				continue
			}
			idx := int(n)
			if idx < 1 || idx > hitCount {
				continue
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			out.Sources = append(out.Sources, idx)
		}
	}

	if c, ok := toNumber(m["confidence"]); ok {
		switch {
		case c < 0:
			c = 0
		case c > 1:
			c = 1
		}
		out.Confidence = c
	}
	return out
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// firstJSONObject 按括号配对截取第一个完整对象，忽略字符串内的括号
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
