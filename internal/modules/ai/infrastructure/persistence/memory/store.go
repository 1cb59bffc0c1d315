package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/domain/repository"
)

// Store 进程内的内容存储，供单测与 mock 模式使用，语义与 gorm 实现一致
type Store struct {
	mu      sync.Mutex
	seq     int64
	docs    map[int64]*rag.Document
	chunks  map[int64]*rag.Chunk
	queries map[int64]*rag.QueryLog
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		docs:    map[int64]*rag.Document{},
		chunks:  map[int64]*rag.Chunk{},
		queries: map[int64]*rag.QueryLog{},
		now:     time.Now,
	}
}

// Documents 文档仓储视图
func (s *Store) Documents() repository.DocumentRepository { return (*documentRepo)(s) }

// Chunks chunk 仓储视图
func (s *Store) Chunks() repository.ChunkRepository { return (*chunkRepo)(s) }

// QueryLogs 查询日志仓储视图
func (s *Store) QueryLogs() repository.QueryLogRepository { return (*queryLogRepo)(s) }

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

type documentRepo Store

var _ repository.DocumentRepository = (*documentRepo)(nil)

func cloneDoc(d *rag.Document) *rag.Document {
	c := *d
	if d.Title != nil {
		c.Title = rag.Ptr(*d.Title)
	}
	return &c
}

func (r *documentRepo) Create(_ context.Context, doc *rag.Document) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if live := s.liveBySource(doc.SourceType, doc.SourceID); live != nil {
		return rag.Validationf("document %s/%s already exists", doc.SourceType, doc.SourceID)
	}
	doc.ID = s.nextID()
	if doc.Version <= 0 {
		doc.Version = 1
	}
	doc.CreatedAt, doc.UpdatedAt = s.now(), s.now()
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *documentRepo) GetByID(_ context.Context, id int64) (*rag.Document, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.IsDeleted() {
		return nil, nil
	}
	return cloneDoc(d), nil
}

func (r *documentRepo) GetBySource(_ context.Context, sourceType rag.SourceType, sourceID string) (*rag.Document, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.liveBySource(sourceType, sourceID); d != nil {
		return cloneDoc(d), nil
	}
	return nil, nil
}

func (r *documentRepo) Update(_ context.Context, doc *rag.Document) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[doc.ID]
	if !ok || cur.IsDeleted() {
		return rag.NotFoundf("document %d", doc.ID)
	}
	cur.Title = doc.Title
	cur.RawContent = doc.RawContent
	cur.ContentHash = doc.ContentHash
	cur.Version = doc.Version
	cur.UpdatedAt = s.now()
	return nil
}

func (r *documentRepo) Upsert(_ context.Context, doc *rag.Document) (*rag.Document, repository.UpsertOutcome, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ContentHash == "" {
		doc.ContentHash = rag.ContentHash(doc.RawContent)
	}
	cur := s.liveBySource(doc.SourceType, doc.SourceID)
	if cur == nil {
		created := cloneDoc(doc)
		created.ID = s.nextID()
		created.Version = 1
		created.DeletedAt, created.DeleteMark = nil, 0
		created.CreatedAt, created.UpdatedAt = s.now(), s.now()
		s.docs[created.ID] = created
		return cloneDoc(created), repository.UpsertCreated, nil
	}
	if cur.ContentHash == doc.ContentHash {
		return cloneDoc(cur), repository.UpsertUnchanged, nil
	}
	cur.Title = doc.Title
	cur.RawContent = doc.RawContent
	cur.ContentHash = doc.ContentHash
	cur.Version++
	cur.UpdatedAt = s.now()
	return cloneDoc(cur), repository.UpsertUpdated, nil
}

func (r *documentRepo) SoftDelete(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.IsDeleted() {
		return rag.NotFoundf("document %d", id)
	}
	now := s.now()
	d.DeletedAt = &now
	d.DeleteMark = d.ID
	return nil
}

func (s *Store) liveBySource(sourceType rag.SourceType, sourceID string) *rag.Document {
	for _, d := range s.docs {
		if !d.IsDeleted() && d.SourceType == sourceType && d.SourceID == sourceID {
			return d
		}
	}
	return nil
}

type chunkRepo Store

var _ repository.ChunkRepository = (*chunkRepo)(nil)

func cloneChunk(c *rag.Chunk) *rag.Chunk {
	cp := *c
	return &cp
}

// liveChunk 所属文档存在且未软删除
func (s *Store) liveChunk(c *rag.Chunk) bool {
	d, ok := s.docs[c.DocumentID]
	return ok && !d.IsDeleted()
}

func (r *chunkRepo) Create(ctx context.Context, chunk *rag.Chunk) error {
	return r.BulkCreate(ctx, []*rag.Chunk{chunk})
}

func (r *chunkRepo) BulkCreate(_ context.Context, chunks []*rag.Chunk) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.ID = s.nextID()
		c.CreatedAt = s.now()
		s.chunks[c.ID] = cloneChunk(c)
	}
	return nil
}

func (r *chunkRepo) GetByID(_ context.Context, id int64) (*rag.Chunk, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok || !s.liveChunk(c) {
		return nil, nil
	}
	return cloneChunk(c), nil
}

func (r *chunkRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*rag.Chunk, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*rag.Chunk, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok && s.liveChunk(c) {
			out[id] = cloneChunk(c)
		}
	}
	return out, nil
}

func (r *chunkRepo) ListByDocument(_ context.Context, documentID int64) ([]*rag.Chunk, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterChunks(func(c *rag.Chunk) bool { return c.DocumentID == documentID }), nil
}

func (r *chunkRepo) ListByContext(_ context.Context, documentID int64, contextID int) ([]*rag.Chunk, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterChunks(func(c *rag.Chunk) bool {
		return c.DocumentID == documentID && c.ContextID == contextID
	}), nil
}

func (r *chunkRepo) DeleteByDocument(_ context.Context, documentID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			ids = append(ids, id)
			delete(s.chunks, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *chunkRepo) CountByDocument(_ context.Context, documentID int64) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (s *Store) filterChunks(keep func(*rag.Chunk) bool) []*rag.Chunk {
	var out []*rag.Chunk
	for _, c := range s.chunks {
		if s.liveChunk(c) && keep(c) {
			out = append(out, cloneChunk(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

type queryLogRepo Store

var _ repository.QueryLogRepository = (*queryLogRepo)(nil)

func cloneLog(l *rag.QueryLog) *rag.QueryLog {
	c := *l
	c.SelectedChunkIDs = append([]int64(nil), l.SelectedChunkIDs...)
	c.ExpendedChunkIDs = append([]int64(nil), l.ExpendedChunkIDs...)
	return &c
}

func (r *queryLogRepo) Create(_ context.Context, log *rag.QueryLog) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = s.nextID()
	log.CreatedAt, log.UpdatedAt = s.now(), s.now()
	s.queries[log.ID] = cloneLog(log)
	return nil
}

func (r *queryLogRepo) GetByID(_ context.Context, id int64) (*rag.QueryLog, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.queries[id]
	if !ok {
		return nil, nil
	}
	return cloneLog(l), nil
}

func (r *queryLogRepo) Update(_ context.Context, id int64, update rag.QueryLogUpdate) (*rag.QueryLog, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.queries[id]
	if !ok {
		return nil, rag.NotFoundf("query log %d", id)
	}
	update.Apply(l)
	l.UpdatedAt = s.now()
	return cloneLog(l), nil
}

func (r *queryLogRepo) Delete(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[id]; !ok {
		return rag.NotFoundf("query log %d", id)
	}
	delete(s.queries, id)
	return nil
}
