package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pand-feedback-go/internal/model"
	"pand-feedback-go/internal/repository"
	"pand-feedback-go/pkg/events"
	"pand-feedback-go/pkg/log"
	"pand-feedback-go/pkg/report"
)

// Committer 把文件写入远端存储。失败不以 error 返回，而是体现在 CommitOutcome 中。
type Committer interface {
	Commit(ctx context.Context, filename, content string) model.CommitOutcome
	Enabled() bool
	Name() string
}

// Emitter 负责本机文件输出。
type Emitter interface {
	Emit(filename, content string) error
}

// EventPublisher 发送提交事件。
type EventPublisher interface {
	Publish(ctx context.Context, evt events.FeedbackSubmitted) error
}

// DraftPatch 描述对草稿的部分更新，nil 字段保持不变。
type DraftPatch struct {
	ModuleID     *string `json:"moduleId"`
	ReviewerName *string `json:"reviewerName"`
	FeedbackType *string `json:"feedbackType"`
	Body         *string `json:"body"`
}

// SubmitResult 是一次提交的结果。
type SubmitResult struct {
	Record  model.FileRecord    `json:"record"`
	Outcome model.CommitOutcome `json:"outcome"`
	Notice  string              `json:"notice"`
}

// RemoteStatus 描述远端存储的配置状态。
type RemoteStatus struct {
	Backend string `json:"backend"`
	Enabled bool   `json:"enabled"`
}

// FeedbackService 定义了反馈表单的业务操作。
type FeedbackService interface {
	GetSession(sessionID string) model.SessionSnapshot
	UpdateDraft(sessionID string, patch DraftPatch) (model.Draft, error)
	Submit(ctx context.Context, sessionID string, patch DraftPatch) (*SubmitResult, error)
	ListFiles(sessionID string) []model.FileRecord
	Download(sessionID, filename string) (model.FileRecord, error)
	Subscribe(sessionID string) (<-chan model.SessionSnapshot, func())
	RemoteStatus() RemoteStatus
}

type feedbackService struct {
	sessions  repository.SessionRepository
	guard     repository.InFlightGuard
	committer Committer
	emitter   Emitter
	publisher EventPublisher
	loc       *time.Location
	now       func() time.Time
}

// Option 用于定制 FeedbackService。
type Option func(*feedbackService)

// WithClock 替换当前时间的来源。
func WithClock(now func() time.Time) Option {
	return func(s *feedbackService) {
		s.now = now
	}
}

// WithLocation 设置文件名与正文使用的时区。
func WithLocation(loc *time.Location) Option {
	return func(s *feedbackService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewFeedbackService 创建一个新的 FeedbackService。publisher 可以为 nil。
func NewFeedbackService(
	sessions repository.SessionRepository,
	guard repository.InFlightGuard,
	committer Committer,
	emitter Emitter,
	publisher EventPublisher,
	opts ...Option,
) FeedbackService {
	s := &feedbackService{
		sessions:  sessions,
		guard:     guard,
		committer: committer,
		emitter:   emitter,
		publisher: publisher,
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *feedbackService) GetSession(sessionID string) model.SessionSnapshot {
	snap := s.sessions.Snapshot(sessionID)
	snap.RemoteEnabled = s.committer.Enabled()
	return snap
}

// UpdateDraft 合并草稿的更新。模块代码为空表示取消选择。
func (s *feedbackService) UpdateDraft(sessionID string, patch DraftPatch) (model.Draft, error) {
	draft, err := applyPatch(s.sessions.Draft(sessionID), patch)
	if err != nil {
		return model.Draft{}, err
	}
	s.sessions.SaveDraft(sessionID, draft)
	return draft, nil
}

func applyPatch(draft model.Draft, patch DraftPatch) (model.Draft, error) {
	if patch.ModuleID != nil {
		id := strings.TrimSpace(*patch.ModuleID)
		if id != "" {
			if _, ok := model.FindModule(id); !ok {
				return model.Draft{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
			}
		}
		draft.ModuleID = id
	}
	if patch.FeedbackType != nil {
		ft, err := model.ParseFeedbackType(*patch.FeedbackType)
		if err != nil {
			return model.Draft{}, fmt.Errorf("%w: %v", ErrInvalidFeedbackType, err)
		}
		draft.FeedbackType = ft
	}
	if patch.ReviewerName != nil {
		draft.ReviewerName = *patch.ReviewerName
	}
	if patch.Body != nil {
		draft.Body = *patch.Body
	}
	return draft, nil
}

// Submit 合并 patch 后依次生成文件、本机输出、远端提交。
// patch 在取得提交锁之后才写入草稿，因提交进行中被拒绝的请求不会改动草稿。
// 本机输出失败不会跳过远端提交，远端提交一旦开始不会因为调用方取消而中断。
func (s *feedbackService) Submit(ctx context.Context, sessionID string, patch DraftPatch) (*SubmitResult, error) {
	token, acquired, err := s.guard.Acquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("检查提交状态失败: %w", err)
	}
	if !acquired {
		return nil, ErrSubmissionInFlight
	}
	detached := context.WithoutCancel(ctx)
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := s.guard.Release(detached, sessionID, token); err != nil {
				log.Error("释放提交锁失败", err)
			}
		})
	}
	defer release()

	result, evt, err := s.process(detached, sessionID, patch)
	release()
	if err != nil {
		return nil, err
	}

	// 事件发送在提交结束之后，不影响状态回到 idle
	s.publish(detached, evt)
	return result, nil
}

// process 在持有提交锁时调用。
func (s *feedbackService) process(ctx context.Context, sessionID string, patch DraftPatch) (*SubmitResult, events.FeedbackSubmitted, error) {
	draft, err := applyPatch(s.sessions.Draft(sessionID), patch)
	if err != nil {
		return nil, events.FeedbackSubmitted{}, err
	}
	s.sessions.SaveDraft(sessionID, draft)

	if draft.ModuleID == "" {
		return nil, events.FeedbackSubmitted{}, ErrModuleRequired
	}
	mod, ok := model.FindModule(draft.ModuleID)
	if !ok {
		return nil, events.FeedbackSubmitted{}, fmt.Errorf("%w: %s", ErrUnknownModule, draft.ModuleID)
	}
	if strings.TrimSpace(draft.Body) == "" {
		return nil, events.FeedbackSubmitted{}, ErrBodyRequired
	}
	if draft.FeedbackType == "" {
		draft.FeedbackType = model.DefaultFeedbackType
	}

	s.sessions.SetSubmitting(sessionID, true)
	defer s.sessions.SetSubmitting(sessionID, false)

	s.sessions.SetPhase(sessionID, model.PhaseComposing)
	now := s.now().In(s.loc)
	rep := report.Compose(mod, draft.ReviewerName, draft.FeedbackType, draft.Body, now)
	record := model.FileRecord{
		Filename:  rep.Filename,
		Module:    mod.Name,
		Content:   rep.Content,
		Timestamp: rep.Timestamp,
		CreatedAt: model.LocalTime(now),
	}

	s.sessions.SetPhase(sessionID, model.PhaseDownloading)
	s.sessions.AppendFile(sessionID, record)
	if err := s.emitter.Emit(rep.Filename, rep.Content); err != nil {
		log.Error("本机文件输出失败，继续远端提交", err)
	}

	s.sessions.SetPhase(sessionID, model.PhaseCommitting)
	outcome := s.committer.Commit(ctx, rep.Filename, rep.Content)
	s.sessions.SetOutcome(sessionID, outcome)
	log.Infow("反馈提交完成",
		"session", sessionID,
		"filename", rep.Filename,
		"backend", s.committer.Name(),
		"status", outcome.Status,
	)

	// 模块与反馈人员保留；提交期间内容被再次编辑时不清空
	current := s.sessions.Draft(sessionID)
	if current.Body == draft.Body {
		current.Body = ""
		s.sessions.SaveDraft(sessionID, current)
	}

	evt := events.FeedbackSubmitted{
		Filename:      rep.Filename,
		ModuleID:      mod.ID,
		ModuleName:    mod.Name,
		Reviewer:      draft.ReviewerName,
		FeedbackType:  string(draft.FeedbackType),
		CommitStatus:  string(outcome.Status),
		CommitMessage: outcome.Message,
		SubmittedAt:   now,
	}
	return &SubmitResult{
		Record:  record,
		Outcome: outcome,
		Notice:  model.MessageSubmitted,
	}, evt, nil
}

func (s *feedbackService) publish(ctx context.Context, evt events.FeedbackSubmitted) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Error("发送提交事件失败", err)
	}
}

// ListFiles 返回本次会话生成的文件，最新的在前。
func (s *feedbackService) ListFiles(sessionID string) []model.FileRecord {
	return s.sessions.Files(sessionID)
}

func (s *feedbackService) Download(sessionID, filename string) (model.FileRecord, error) {
	rec, ok := s.sessions.FindFile(sessionID, filename)
	if !ok {
		return model.FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	return rec, nil
}

// Subscribe 推送的快照不含 RemoteEnabled，由调用方通过 RemoteStatus 补充。
func (s *feedbackService) Subscribe(sessionID string) (<-chan model.SessionSnapshot, func()) {
	return s.sessions.Subscribe(sessionID)
}

func (s *feedbackService) RemoteStatus() RemoteStatus {
	return RemoteStatus{Backend: s.committer.Name(), Enabled: s.committer.Enabled()}
}

// IsClientError 报告 err 是否由请求内容引起。
func IsClientError(err error) bool {
	return errors.Is(err, ErrModuleRequired) ||
		errors.Is(err, ErrUnknownModule) ||
		errors.Is(err, ErrBodyRequired) ||
		errors.Is(err, ErrInvalidFeedbackType)
}
