package repository

import (
	"context"
	"sync"
	"time"

	"pand-feedback-go/internal/model"
	"pand-feedback-go/pkg/log"
)

// SessionRepository 保存每个草稿持有者的表单、文件记录与提交状态。
// 数据只存在于进程内，重启后丢失。读操作不会创建会话。
type SessionRepository interface {
	Snapshot(sessionID string) model.SessionSnapshot
	Draft(sessionID string) model.Draft
	SaveDraft(sessionID string, draft model.Draft)
	// AppendFile 把记录放在最前面，记录不会被修改或删除。
	AppendFile(sessionID string, record model.FileRecord)
	Files(sessionID string) []model.FileRecord
	FindFile(sessionID, filename string) (model.FileRecord, bool)
	SetPhase(sessionID string, phase model.Phase)
	SetSubmitting(sessionID string, submitting bool)
	// SetOutcome 记录提交结果，并在显示时长结束后自动清除。
	SetOutcome(sessionID string, outcome model.CommitOutcome)
	// Subscribe 在状态变化时推送最新快照，调用返回的函数取消订阅。
	Subscribe(sessionID string) (<-chan model.SessionSnapshot, func())
	// EvictIdle 删除超过 idle 未被访问的会话，正在提交或仍有订阅者的会话除外。
	EvictIdle(idle time.Duration) int
}

type session struct {
	draft      model.Draft
	phase      model.Phase
	submitting bool
	outcome    *model.CommitOutcome
	files      []model.FileRecord
	lastSeen   time.Time
	// generation 防止旧的定时器清除较新的结果
	generation uint64
	timer      *time.Timer
	subs       map[int]chan model.SessionSnapshot
	nextSub    int
}

type memorySessionRepository struct {
	mu            sync.Mutex
	sessions      map[string]*session
	displayWindow time.Duration
}

// NewSessionRepository 创建进程内的 SessionRepository。
func NewSessionRepository(displayWindow time.Duration) SessionRepository {
	return &memorySessionRepository{
		sessions:      make(map[string]*session),
		displayWindow: displayWindow,
	}
}

func newSession() *session {
	return &session{
		draft: model.NewDraft(),
		phase: model.PhaseIdle,
		subs:  make(map[int]chan model.SessionSnapshot),
	}
}

// getOrCreate 必须在持有锁时调用。
func (r *memorySessionRepository) getOrCreate(sessionID string) *session {
	s, ok := r.sessions[sessionID]
	if !ok {
		s = newSession()
		r.sessions[sessionID] = s
	}
	s.lastSeen = time.Now()
	return s
}

// lookup 必须在持有锁时调用。会话不存在时返回一个不保存的默认会话。
func (r *memorySessionRepository) lookup(sessionID string) *session {
	s, ok := r.sessions[sessionID]
	if !ok {
		return newSession()
	}
	s.lastSeen = time.Now()
	return s
}

func (r *memorySessionRepository) snapshot(sessionID string, s *session) model.SessionSnapshot {
	snap := model.SessionSnapshot{
		SessionID:  sessionID,
		Draft:      s.draft,
		Phase:      s.phase,
		Submitting: s.submitting,
		Files:      append([]model.FileRecord{}, s.files...),
	}
	if s.outcome != nil {
		o := *s.outcome
		snap.Outcome = &o
	}
	return snap
}

// notify 必须在持有锁时调用。订阅者只关心最新状态，缓冲区满时丢弃旧快照。
func (r *memorySessionRepository) notify(sessionID string, s *session) {
	if len(s.subs) == 0 {
		return
	}
	snap := r.snapshot(sessionID, s)
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (r *memorySessionRepository) Snapshot(sessionID string) model.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(sessionID, r.lookup(sessionID))
}

func (r *memorySessionRepository) Draft(sessionID string) model.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(sessionID).draft
}

func (r *memorySessionRepository) SaveDraft(sessionID string, draft model.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	s.draft = draft
	r.notify(sessionID, s)
}

func (r *memorySessionRepository) AppendFile(sessionID string, record model.FileRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	s.files = append([]model.FileRecord{record}, s.files...)
	r.notify(sessionID, s)
}

func (r *memorySessionRepository) Files(sessionID string) []model.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FileRecord{}, r.lookup(sessionID).files...)
}

func (r *memorySessionRepository) FindFile(sessionID, filename string) (model.FileRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 同名记录以最新的为准
	for _, f := range r.lookup(sessionID).files {
		if f.Filename == filename {
			return f, true
		}
	}
	return model.FileRecord{}, false
}

func (r *memorySessionRepository) SetPhase(sessionID string, phase model.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	s.phase = phase
	r.notify(sessionID, s)
}

// SetSubmitting 结束提交时，如果结果已在提交期间被清除，状态直接回到 idle。
func (r *memorySessionRepository) SetSubmitting(sessionID string, submitting bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	s.submitting = submitting
	if !submitting && s.outcome == nil {
		s.phase = model.PhaseIdle
	}
	r.notify(sessionID, s)
}

func (r *memorySessionRepository) SetOutcome(sessionID string, outcome model.CommitOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	s.outcome = &outcome
	s.phase = model.PhaseFor(outcome)
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.generation
	s.timer = time.AfterFunc(r.displayWindow, func() {
		r.clearOutcome(sessionID, gen)
	})
	r.notify(sessionID, s)
}

func (r *memorySessionRepository) clearOutcome(sessionID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.generation != gen {
		return
	}
	s.outcome = nil
	s.timer = nil
	if !s.submitting {
		s.phase = model.PhaseIdle
	}
	r.notify(sessionID, s)
}

func (r *memorySessionRepository) Subscribe(sessionID string) (<-chan model.SessionSnapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreate(sessionID)
	id := s.nextSub
	s.nextSub++
	ch := make(chan model.SessionSnapshot, 1)
	s.subs[id] = ch
	ch <- r.snapshot(sessionID, s)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			// 有订阅者的会话不会被回收
			delete(s.subs, id)
			s.lastSeen = time.Now()
			close(ch)
		})
	}
	return ch, cancel
}

func (r *memorySessionRepository) EvictIdle(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, s := range r.sessions {
		if s.submitting || len(s.subs) > 0 || time.Since(s.lastSeen) < idle {
			continue
		}
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// RunSessionSweeper 每隔 interval 回收一次空闲会话，直到 ctx 结束。
func RunSessionSweeper(ctx context.Context, repo SessionRepository, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := repo.EvictIdle(idle); n > 0 {
				log.Infof("已回收 %d 个空闲会话", n)
			}
		}
	}
}
