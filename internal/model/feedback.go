package model

import "fmt"

// FeedbackType 是反馈类型，取值固定为四种。
type FeedbackType string

const (
	FeedbackSuggestion FeedbackType = "建議"
	FeedbackRisk       FeedbackType = "風險"
	FeedbackBenefit    FeedbackType = "效益"
	FeedbackQuestion   FeedbackType = "疑問"
)

// DefaultFeedbackType 是新草稿的反馈类型。
const DefaultFeedbackType = FeedbackSuggestion

// FeedbackTypeOption 是下拉选单中的一项。
type FeedbackTypeOption struct {
	Value FeedbackType `json:"value"`
	Label string       `json:"label"`
}

var feedbackTypeOptions = []FeedbackTypeOption{
	{Value: FeedbackSuggestion, Label: "💡 功能優化建議"},
	{Value: FeedbackRisk, Label: "⚠️ 風險/漏洞預警"},
	{Value: FeedbackBenefit, Label: "📈 效益評估回饋"},
	{Value: FeedbackQuestion, Label: "❓ 邏輯疑問"},
}

// FeedbackTypes 按展示顺序返回所有反馈类型。
func FeedbackTypes() []FeedbackTypeOption {
	return append([]FeedbackTypeOption(nil), feedbackTypeOptions...)
}

// ParseFeedbackType 校验并转换反馈类型字符串。
func ParseFeedbackType(s string) (FeedbackType, error) {
	for _, opt := range feedbackTypeOptions {
		if string(opt.Value) == s {
			return opt.Value, nil
		}
	}
	return "", fmt.Errorf("未知的反馈类型: %q", s)
}

// Draft 是尚未提交的反馈表单。
type Draft struct {
	ModuleID     string       `json:"moduleId"`
	ReviewerName string       `json:"reviewerName"`
	FeedbackType FeedbackType `json:"feedbackType"`
	Body         string       `json:"body"`
}

// NewDraft 返回一份空草稿。
func NewDraft() Draft {
	return Draft{FeedbackType: DefaultFeedbackType}
}

// FileRecord 是一次提交生成的文件记录，只在进程内保存。
type FileRecord struct {
	Filename  string    `json:"filename"`
	Module    string    `json:"module"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
	CreatedAt LocalTime `json:"createdAt"`
}
