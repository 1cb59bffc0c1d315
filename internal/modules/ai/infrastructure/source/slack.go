package source

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"

	"github.com/slack-go/slack"
)

// SlackMessage 渲染所需的消息字段
type SlackMessage struct {
	Timestamp string
	User      string
	Text      string
	SubType   string
}

// SlackFetcher 频道历史读取接口
type SlackFetcher interface {
	// History 读取一页消息，nextCursor 为空表示没有更多
	History(ctx context.Context, channelID, cursor string, limit int) (msgs []SlackMessage, nextCursor string, err error)
}

// Slack 频道来源：整段频道历史渲染为一份按时间升序的文本
type Slack struct {
	api     SlackFetcher
	domain  rag.Domain
	channel string
	title   string
	limit   int
}

func NewSlack(api SlackFetcher, domain rag.Domain, channelID, title string, limit int) *Slack {
	if limit <= 0 {
		limit = 200
	}
	return &Slack{api: api, domain: domain, channel: channelID, title: title, limit: limit}
}

func (s *Slack) Kind() rag.SourceType { return rag.SourceSlack }

func (s *Slack) BuildDocument(ctx context.Context) (rag.SourceDocument, error) {
	if s.channel == "" {
		return rag.SourceDocument{}, rag.MalformedSourcef("slack channel id is empty")
	}
	var all []SlackMessage
	cursor := ""
	for {
		page, next, err := s.api.History(ctx, s.channel, cursor, s.limit)
		if err != nil {
			return rag.SourceDocument{}, rag.Stage(rag.StageSource, err)
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	return rag.SourceDocument{
		Domain:     s.domain,
		SourceType: rag.SourceSlack,
		SourceID:   s.channel,
		Title:      optionalTitle(s.title),
		Content:    RenderSlackTranscript(all),
	}, nil
}

// RenderSlackTranscript 每条消息一行 "[RFC3339] user: text"，最早的在前；跳过进出频道与空消息
func RenderSlackTranscript(msgs []SlackMessage) string {
	type line struct {
		ts   float64
		text string
	}
	lines := make([]line, 0, len(msgs))
	for _, m := range msgs {
		if m.SubType == "channel_join" || m.SubType == "channel_leave" {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		ts, _ := strconv.ParseFloat(m.Timestamp, 64)
		user := m.User
		if user == "" {
			user = "unknown"
		}
		lines = append(lines, line{ts: ts, text: "[" + slackTime(ts) + "] " + user + ": " + text})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ts < lines[j].ts })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.text)
	}
	return strings.Join(out, "\n")
}

func slackTime(ts float64) string {
	sec := int64(ts)
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// slackAPIFetcher 基于 slack-go 的实现
type slackAPIFetcher struct {
	client *slack.Client
}

func NewSlackAPIFetcher(token string) SlackFetcher {
	return &slackAPIFetcher{client: slack.New(token)}
}

func (f *slackAPIFetcher) History(ctx context.Context, channelID, cursor string, limit int) ([]SlackMessage, string, error) {
	resp, err := f.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		return nil, "", err
	}
	out := make([]SlackMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, SlackMessage{
			Timestamp: m.Timestamp,
			User:      m.User,
			Text:      m.Text,
			SubType:   m.SubType,
		})
	}
	next := ""
	if resp.HasMore {
		next = resp.ResponseMetaData.NextCursor
	}
	return out, next, nil
}
