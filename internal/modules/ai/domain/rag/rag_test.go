package rag

import (
	"errors"
	"fmt"
	"testing"

	"koo/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain(" cs ")
	require.NoError(t, err)
	assert.Equal(t, DomainCS, d)
	assert.Equal(t, "dev", DomainDEV.Lower())

	_, err = ParseDomain("ops")
	assert.ErrorIs(t, err, ErrValidation)

	ds, err := ParseDomains([]string{"DEV", "cs", "dev"})
	require.NoError(t, err)
	assert.Equal(t, []Domain{DomainDEV, DomainCS}, ds)
}

func TestParseSourceType(t *testing.T) {
	s, err := ParseSourceType("raw-text")
	require.NoError(t, err)
	assert.Equal(t, SourceRawText, s)

	_, err = ParseSourceType("email")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeScore(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeScore(MetricSimilarity, 1), 1e-9)
	assert.InDelta(t, 0.5, NormalizeScore(MetricSimilarity, 0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeScore(MetricSimilarity, -1), 1e-9)

	assert.InDelta(t, 1.0, NormalizeScore(MetricCosineDistance, 0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeScore(MetricCosineDistance, 2), 1e-9)

	assert.InDelta(t, 1.0, NormalizeScore(MetricL2Distance, 0), 1e-9)
	assert.InDelta(t, 0.5, NormalizeScore(MetricL2Distance, 1), 1e-9)

	// 自动模式：范围内按相似度，超出按距离
	assert.InDelta(t, 0.9, NormalizeScore(MetricAuto, 0.8), 1e-9)
	assert.InDelta(t, 0.0, NormalizeScore(MetricAuto, 1.5), 1e-9)
}

func TestContentHash(t *testing.T) {
	a := ContentHash("line  one\r\nline\t\ttwo\n")
	b := ContentHash("  line one\nline two")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, ContentHash("line one\nline three"))
	assert.Equal(t, "a\nb", NormalizeContent("a\rb"))
}

func TestQueryLogUpdateApply(t *testing.T) {
	log := &QueryLog{Answer: "old", InputTokens: 5, OutputTokens: 7}

	QueryLogUpdate{}.Apply(log)
	assert.Equal(t, "old", log.Answer)
	assert.Equal(t, 12, log.TotalTokens)

	// 零值与空串同样会覆盖
	QueryLogUpdate{Answer: Ptr(""), InputTokens: Ptr(0)}.Apply(log)
	assert.Equal(t, "", log.Answer)
	assert.Equal(t, 0, log.InputTokens)
	assert.Equal(t, 7, log.TotalTokens)
}

func TestStageError(t *testing.T) {
	err := Stage(StageEmbedding, errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrUpstream)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageEmbedding, se.Stage)
	assert.Equal(t, "embedding: connection refused", err.Error())

	verr := Stage(StageEmbedding, Validationf("got %d vectors for %d chunks", 1, 2))
	assert.ErrorIs(t, verr, ErrValidation)
	assert.NotErrorIs(t, verr, ErrUpstream)
	assert.Equal(t, xerr.BadRequest, xerr.FromError(verr).Code)

	twice := Stage(StageEmbedding, err)
	assert.Same(t, err, twice)
	assert.Equal(t, "embedding: connection refused", twice.Error())
	nested := Stage(StageAnswer, err)
	assert.Equal(t, "answer: embedding: connection refused", nested.Error())

	assert.Nil(t, Stage(StageAnswer, nil))
	assert.Equal(t, xerr.UpstreamUnavailable, xerr.FromError(fmt.Errorf("ask: %w", err)).Code)
}

func TestSourceDocumentValidate(t *testing.T) {
	ok := SourceDocument{Domain: DomainCS, SourceType: SourceRawText, SourceID: "a"}
	assert.NoError(t, ok.Validate())

	missing := ok
	missing.SourceID = " "
	assert.ErrorIs(t, missing.Validate(), ErrValidation)
}
