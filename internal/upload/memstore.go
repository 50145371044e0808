package upload

import (
	"context"
	"sync"
	"time"

	"github.com/templui/twinboard/internal/model"
)

type memSession struct {
	mu    sync.Mutex
	info  model.UploadSession
	parts map[int]model.Part
	done  bool
}

// MemoryStore keeps sessions in process memory. Each session is guarded by
// its own mutex so part writes to different uploads never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
	}
}

func (s *MemoryStore) Open(ctx context.Context, session model.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return ErrSessionExists
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.ID] = &memSession{
		info:  session,
		parts: make(map[int]model.Part),
	}
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, uploadID string) (model.UploadSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[uploadID]
	s.mu.RUnlock()
	if !ok {
		return model.UploadSession{}, notFound(uploadID)
	}
	return sess.info, nil
}

func (s *MemoryStore) PutPart(ctx context.Context, uploadID string, partNumber int, content []byte) (string, error) {
	if partNumber < 1 {
		return "", ErrInvalidPartNumber
	}

	s.mu.RLock()
	sess, ok := s.sessions[uploadID]
	s.mu.RUnlock()
	if !ok {
		return "", notFound(uploadID)
	}

	etag := ETag(content)
	stored := append([]byte(nil), content...)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	// lost the race with Finalize or Reap
	if sess.done {
		return "", notFound(uploadID)
	}
	sess.parts[partNumber] = model.Part{PartNumber: partNumber, Content: stored, ETag: etag}
	return etag, nil
}

func (s *MemoryStore) Finalize(ctx context.Context, uploadID string, kind model.MediaKind) (model.FinalizedBlob, error) {
	s.mu.Lock()
	sess, ok := s.sessions[uploadID]
	if ok {
		delete(s.sessions, uploadID)
	}
	s.mu.Unlock()
	if !ok {
		return model.FinalizedBlob{}, notFound(uploadID)
	}

	sess.mu.Lock()
	sess.done = true
	parts := make([]model.Part, 0, len(sess.parts))
	for _, p := range sess.parts {
		parts = append(parts, p)
	}
	info := sess.info
	sess.parts = nil
	sess.mu.Unlock()

	return assemble(info, kind, parts)
}

func (s *MemoryStore) Reap(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	var expired []*memSession
	for id, sess := range s.sessions {
		if sess.info.CreatedAt.Before(olderThan) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.mu.Lock()
		sess.done = true
		sess.parts = nil
		sess.mu.Unlock()
	}
	return len(expired), nil
}

// Len returns the number of open sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
