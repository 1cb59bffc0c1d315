package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/mq"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	sent   []mq.Message
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, msg mq.Message) (mq.PublishResult, error) {
	if f.err != nil {
		return mq.PublishResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mq.PublishResult{Partition: 0, Offset: int64(len(f.sent))}, nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type fakeIngester struct {
	specs []source.Spec
	force []bool
	err   error
}

func (f *fakeIngester) IngestSource(_ context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error) {
	f.specs = append(f.specs, spec)
	f.force = append(f.force, force)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.IngestResult{DocumentID: 1, Outcome: "created", ChunkCount: 2}, nil
}

// fakeConsumer 依次把消息交给 handler，记录哪些被确认
type fakeConsumer struct {
	msgs  []mq.Message
	acked []bool
}

func (f *fakeConsumer) Run(ctx context.Context, h mq.Handler) error {
	for _, m := range f.msgs {
		f.acked = append(f.acked, h.Handle(ctx, m) == nil)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

func TestIngestPublisherFillsDefaults(t *testing.T) {
	pub := &fakePublisher{}
	p, err := NewIngestPublisher(pub, " koo.rag.ingest ")
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	m, res, err := p.Publish(context.Background(), mq.IngestMessage{
		Domain:     rag.DomainCS,
		SourceType: rag.SourceRawText,
		SourceID:   " note-1 ",
		Content:    "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.RequestID)
	assert.Equal(t, "note-1", m.SourceID)
	assert.Equal(t, int64(1), res.Offset)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "koo.rag.ingest", pub.sent[0].Topic)
	assert.Equal(t, "RAW_TEXT:note-1", string(pub.sent[0].Key))

	decoded, err := mq.DecodeIngest(pub.sent[0])
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	require.NoError(t, p.Close())
	assert.True(t, pub.closed)
}

func TestIngestPublisherErrors(t *testing.T) {
	_, err := NewIngestPublisher(nil, "t")
	assert.ErrorIs(t, err, rag.ErrValidation)
	_, err = NewIngestPublisher(&fakePublisher{}, " ")
	assert.ErrorIs(t, err, rag.ErrValidation)

	p, err := NewIngestPublisher(&fakePublisher{}, "t")
	require.NoError(t, err)
	_, _, err = p.Publish(context.Background(), mq.IngestMessage{Domain: "OPS", SourceType: rag.SourceRawText, SourceID: "x"})
	assert.ErrorIs(t, err, rag.ErrValidation)

	boom := errors.New("broker down")
	p, err = NewIngestPublisher(&fakePublisher{err: boom}, "t")
	require.NoError(t, err)
	_, _, err = p.Publish(context.Background(), mq.IngestMessage{Domain: rag.DomainDEV, SourceType: rag.SourceFile, SourceID: "/tmp/a"})
	assert.ErrorIs(t, err, boom)
}

func encode(t *testing.T, m mq.IngestMessage) mq.Message {
	t.Helper()
	msg, err := mq.EncodeIngest("t", m)
	require.NoError(t, err)
	return msg
}

func TestWorkerAcknowledgesOnlySuccessAndPermanentFailures(t *testing.T) {
	ok := encode(t, mq.IngestMessage{RequestID: "1", Domain: rag.DomainDEV, SourceType: rag.SourceNotion, SourceID: "page", Force: true})
	garbage := mq.Message{Topic: "t", Value: []byte("{")}

	ing := &fakeIngester{}
	consumer := &fakeConsumer{msgs: []mq.Message{ok, garbage}}
	w := NewIngestConsumerWorker(consumer, ing)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []bool{true, true}, consumer.acked)
	require.Len(t, ing.specs, 1)
	assert.Equal(t, source.Spec{Domain: rag.DomainDEV, SourceType: rag.SourceNotion, SourceID: "page"}, ing.specs[0])
	assert.Equal(t, []bool{true}, ing.force)
}

func TestWorkerLeavesUpstreamFailuresUnacknowledged(t *testing.T) {
	msg := encode(t, mq.IngestMessage{Domain: rag.DomainCS, SourceType: rag.SourceRawText, SourceID: "a", Content: "x"})

	upstream := &fakeIngester{err: rag.Stage(rag.StageEmbedding, errors.New("timeout"))}
	err := NewIngestConsumerWorker(nil, upstream).Handle(context.Background(), msg)
	assert.ErrorIs(t, err, rag.ErrUpstream)

	malformed := &fakeIngester{err: rag.MalformedSourcef("not utf-8")}
	assert.NoError(t, NewIngestConsumerWorker(nil, malformed).Handle(context.Background(), msg))
}

func TestWorkerRunRequiresCollaborators(t *testing.T) {
	assert.ErrorIs(t, NewIngestConsumerWorker(nil, &fakeIngester{}).Run(context.Background()), rag.ErrValidation)
	assert.ErrorIs(t, NewIngestConsumerWorker(&fakeConsumer{}, nil).Run(context.Background()), rag.ErrValidation)
}
