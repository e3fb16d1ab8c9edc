// Package report 根据所选模块与表单内容生成反馈文件的文件名与正文。
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"pand-feedback-go/internal/model"
)

const (
	// Anonymous 是未填写反馈人员时使用的占位名称。
	Anonymous = "匿名"
	// MaxReviewerLength 是文件名中反馈人员部分的最大字符数。
	MaxReviewerLength = 30

	dateLayout      = "2006-01-02"
	timeLayout      = "15-04"
	fullLayout      = "2006/1/2 15:04:05"
	separator       = "--------------------------------------------------"
	keywordJoiner   = ", "
	referenceSource = "ERP 需求規畫書細節展開 (9b8a1d73)"
)

// 文件名中不允许出现的字符。'_' 是字段分隔符，'.' 会被整体移除以防目录穿越。
const unsafeFilenameChars = `/\:*?"'<>|%&#$~` + "`" + `_.`

// Report 是一次提交生成的文件。
type Report struct {
	Filename string
	Content  string
	// Timestamp 是写入正文的完整时间。
	Timestamp string
}

// Compose 生成文件名与正文。对相同输入与相同 now 的结果逐字节一致。
// now 应已转换到期望的时区。
func Compose(mod model.Module, reviewerName string, feedbackType model.FeedbackType, body string, now time.Time) Report {
	full := FormatTimestamp(now)
	filename := fmt.Sprintf("%s_%s_%s_%s_%s.txt",
		now.Format(dateLayout),
		now.Format(timeLayout),
		ModuleSegment(mod.Name),
		SanitizeReviewer(reviewerName),
		feedbackType,
	)

	reviewer := reviewerName
	if strings.TrimSpace(reviewer) == "" {
		reviewer = Anonymous
	}

	var b strings.Builder
	b.WriteString("【磐德國際 ERP 建構需求規畫書 - 意見反饋單】\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "建檔日期：%s\n", full)
	fmt.Fprintf(&b, "模塊名稱：%s\n", mod.Name)
	fmt.Fprintf(&b, "模塊代碼：%s\n", mod.ID)
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "反饋人員：%s\n", reviewer)
	fmt.Fprintf(&b, "反饋類型：%s\n", feedbackType)
	b.WriteString(separator + "\n")
	b.WriteString("【反饋內容詳述】\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(separator + "\n")
	b.WriteString("【系統自動生成資訊】\n")
	fmt.Fprintf(&b, "參考依據：%s\n", referenceSource)
	fmt.Fprintf(&b, "核心功能關聯：%s\n", mod.Details)
	fmt.Fprintf(&b, "關鍵字標籤：%s", strings.Join(mod.Keywords, keywordJoiner))

	return Report{Filename: filename, Content: b.String(), Timestamp: full}
}

// FormatTimestamp 返回写入正文的完整时间，例如 "2025/1/8 14:05:09"。
func FormatTimestamp(now time.Time) string {
	return now.Format(fullLayout)
}

// SanitizeReviewer 把反馈人员名称转换为可安全用于文件名的片段。
func SanitizeReviewer(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == MaxReviewerLength {
			break
		}
		if unicode.IsControl(r) || unicode.IsSpace(r) || strings.ContainsRune(unsafeFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	if b.Len() == 0 {
		return Anonymous
	}
	return b.String()
}

// ModuleSegment 去掉模块名称中的空白与标点，例如 "P-MES 製造執行" -> "PMES製造執行"。
func ModuleSegment(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}
