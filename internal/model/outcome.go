package model

// CommitStatus 区分远端同步的三种结果。
type CommitStatus string

const (
	CommitCommitted CommitStatus = "committed"
	// CommitDegraded 表示未配置远端凭证，只做了本机下载。
	CommitDegraded CommitStatus = "degraded"
	CommitFailed   CommitStatus = "failed"
)

// 面向用户的提示文字。
const (
	MessageCommitted     = "已同步發送到規劃師"
	MessageLocalOnly     = "GitHub Token 未設定，僅本機下載"
	MessageFailureFormat = "發送失敗(系統問題)：%s，請將下載檔案手動傳給規劃師"
	MessageSubmitted     = "意見已提交，檔案自動下載中..."
)

// CommitOutcome 是一次远端提交的结果。
type CommitOutcome struct {
	OK      bool         `json:"ok"`
	Status  CommitStatus `json:"status"`
	Message string       `json:"message"`
}

// Committed 构造成功结果。
func Committed(message string) CommitOutcome {
	return CommitOutcome{OK: true, Status: CommitCommitted, Message: message}
}

// Degraded 构造未配置凭证时的结果。
func Degraded(message string) CommitOutcome {
	return CommitOutcome{OK: false, Status: CommitDegraded, Message: message}
}

// Failed 构造失败结果。
func Failed(message string) CommitOutcome {
	return CommitOutcome{OK: false, Status: CommitFailed, Message: message}
}

// Phase 是单次提交的状态。
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseComposing   Phase = "composing"
	PhaseDownloading Phase = "downloading"
	PhaseCommitting  Phase = "committing"
	PhaseCommitted   Phase = "committed"
	PhaseDegraded    Phase = "degraded"
	PhaseFailed      Phase = "failed"
)

// PhaseFor 把提交结果映射为终态。
func PhaseFor(o CommitOutcome) Phase {
	switch o.Status {
	case CommitCommitted:
		return PhaseCommitted
	case CommitDegraded:
		return PhaseDegraded
	default:
		return PhaseFailed
	}
}

// SessionSnapshot 是某个草稿持有者当前的完整状态。
type SessionSnapshot struct {
	SessionID     string         `json:"sessionId"`
	Draft         Draft          `json:"draft"`
	Phase         Phase          `json:"phase"`
	Submitting    bool           `json:"submitting"`
	Outcome       *CommitOutcome `json:"outcome,omitempty"`
	Files         []FileRecord   `json:"files"`
	RemoteEnabled bool           `json:"remoteEnabled"`
}
