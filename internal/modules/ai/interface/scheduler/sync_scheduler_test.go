package scheduler

import (
	"context"
	"errors"
	"sort"
	"testing"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/pipeline"
	"koo/internal/modules/ai/infrastructure/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	specs []source.Spec
	err   error
}

func (f *fakeIngester) IngestSource(ctx context.Context, spec source.Spec, force bool) (*pipeline.IngestResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	if force {
		return nil, errors.New("resync must not force")
	}
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.IngestResult{Outcome: "unchanged", Unchanged: true}, nil
}

func TestRegisterAndRunNow(t *testing.T) {
	ing := &fakeIngester{}
	s := NewSyncScheduler(ing)
	require.NoError(t, s.Register([]config.SyncJob{
		{Cron: "*/30 * * * *", Domain: "dev", SourceType: "notion", SourceID: " page-1 "},
		{Cron: "0 3 * * *", Domain: "CS", SourceType: "SLACK", SourceID: "C123", Title: "support"},
	}))

	jobs := s.Jobs()
	sort.Strings(jobs)
	assert.Equal(t, []string{"NOTION:page-1", "SLACK:C123"}, jobs)

	require.NoError(t, s.RunNow(context.Background(), "SLACK:C123"))
	require.Len(t, ing.specs, 1)
	assert.Equal(t, source.Spec{Domain: rag.DomainCS, SourceType: rag.SourceSlack, SourceID: "C123", Title: "support"}, ing.specs[0])

	err := s.RunNow(context.Background(), "FILE:/nope")
	assert.ErrorIs(t, err, rag.ErrNotFound)
}

func TestRegisterRejectsInvalidJobs(t *testing.T) {
	cases := []config.SyncJob{
		{Cron: "* * * * *", Domain: "OPS", SourceType: "NOTION", SourceID: "p"},
		{Cron: "* * * * *", Domain: "CS", SourceType: "RAW_TEXT", SourceID: "p"},
		{Cron: "* * * * *", Domain: "CS", SourceType: "FILE", SourceID: " "},
		{Cron: "every day", Domain: "CS", SourceType: "FILE", SourceID: "/a.md"},
	}
	for _, c := range cases {
		err := NewSyncScheduler(&fakeIngester{}).Register([]config.SyncJob{c})
		assert.ErrorIs(t, err, rag.ErrValidation, "%+v", c)
	}

	dup := config.SyncJob{Cron: "* * * * *", Domain: "CS", SourceType: "FILE", SourceID: "/a.md"}
	err := NewSyncScheduler(&fakeIngester{}).Register([]config.SyncJob{dup, dup})
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestRegisterIsAllOrNothing(t *testing.T) {
	s := NewSyncScheduler(&fakeIngester{})
	err := s.Register([]config.SyncJob{
		{Cron: "*/30 * * * *", Domain: "CS", SourceType: "NOTION", SourceID: "page-1"},
		{Cron: "every day", Domain: "CS", SourceType: "FILE", SourceID: "/a.md"},
	})
	assert.ErrorIs(t, err, rag.ErrValidation)
	assert.Empty(t, s.Jobs())
	assert.Empty(t, s.cron.Entries())

	// 修正后整批可以重新登记
	require.NoError(t, s.Register([]config.SyncJob{
		{Cron: "*/30 * * * *", Domain: "CS", SourceType: "NOTION", SourceID: "page-1"},
		{Cron: "@daily", Domain: "CS", SourceType: "FILE", SourceID: "/a.md"},
	}))
	assert.Len(t, s.Jobs(), 2)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestRunNowPropagatesFailure(t *testing.T) {
	boom := rag.Stage(rag.StageSource, errors.New("rate limited"))
	s := NewSyncScheduler(&fakeIngester{err: boom})
	require.NoError(t, s.Register([]config.SyncJob{{Cron: "@hourly", Domain: "CS", SourceType: "FILE", SourceID: "/a.md"}}))
	assert.ErrorIs(t, s.RunNow(context.Background(), "FILE:/a.md"), rag.ErrUpstream)
}

func TestStartStop(t *testing.T) {
	s := NewSyncScheduler(&fakeIngester{})
	s.Start()
	s.Stop(context.Background())
}
