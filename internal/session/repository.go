package session

import (
	"errors"
	"sort"
	"sync"

	"strato/internal/paper"
)

// ErrNotFound 会话不存在。
var ErrNotFound = errors.New("session not found")

// ErrUnauthorized 调用者身份与会话 owner 不符。
var ErrUnauthorized = errors.New("session does not belong to caller")

// Repository 会话存储。Update 对同一会话串行执行，保证
// cashBalance/positions 的读改写不被并发更新打穿。
type Repository interface {
	Put(s *paper.Session)
	Get(id string) (*paper.Session, bool)
	Delete(id string) bool
	ListByUser(userID string) []*paper.Session
	Update(id string, fn func(*paper.Session) error) error
}

type entry struct {
	mu      sync.Mutex
	session *paper.Session
}

// MemoryRepository 进程内会话表。进程重启丢失所有会话。
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*entry)}
}

func (r *MemoryRepository) Put(s *paper.Session) {
	if s == nil || s.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &entry{session: s}
}

func (r *MemoryRepository) Get(id string) (*paper.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (r *MemoryRepository) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *MemoryRepository) ListByUser(userID string) []*paper.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*paper.Session, 0)
	for _, e := range r.sessions {
		if e.session.UserID == userID {
			out = append(out, e.session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Update 在该会话的互斥锁下执行 fn。
func (r *MemoryRepository) Update(id string, fn func(*paper.Session) error) error {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}
