package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"pand-feedback-go/internal/middleware"
	"pand-feedback-go/internal/model"
	"pand-feedback-go/internal/service"
	"pand-feedback-go/pkg/log"
)

// FeedbackHandler 负责草稿、提交与文件下载的 API 请求。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// fileSummary 是文件列表中不含正文的条目。
type fileSummary struct {
	Filename    string          `json:"filename"`
	Module      string          `json:"module"`
	Timestamp   string          `json:"timestamp"`
	CreatedAt   model.LocalTime `json:"createdAt"`
	DownloadURL string          `json:"downloadUrl"`
}

func downloadURL(filename string) string {
	return "/api/v1/session/files/" + url.PathEscape(filename)
}

func summarize(rec model.FileRecord) fileSummary {
	return fileSummary{
		Filename:    rec.Filename,
		Module:      rec.Module,
		Timestamp:   rec.Timestamp,
		CreatedAt:   rec.CreatedAt,
		DownloadURL: downloadURL(rec.Filename),
	}
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "服務器內部錯誤"
	switch {
	case service.IsClientError(err):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSubmissionInFlight):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrFileNotFound):
		status, message = http.StatusNotFound, err.Error()
	default:
		log.Error("请求处理失败", err)
	}
	c.JSON(status, gin.H{"code": status, "message": message})
}

// GetSession 返回当前会话的草稿、状态与文件记录。
func (h *FeedbackHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.feedbackService.GetSession(middleware.SessionID(c)),
	})
}

// UpdateDraft 部分更新草稿。
func (h *FeedbackHandler) UpdateDraft(c *gin.Context) {
	var patch service.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "無效的請求負載"})
		return
	}
	draft, err := h.feedbackService.UpdateDraft(middleware.SessionID(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": draft})
}

// Submit 提交当前草稿。请求体可以携带草稿更新，取得提交锁后才会合并。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	var patch service.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "無效的請求負載"})
		return
	}
	result, err := h.feedbackService.Submit(c.Request.Context(), sessionID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": result.Notice,
		"data": gin.H{
			"file":    summarize(result.Record),
			"content": result.Record.Content,
			"outcome": result.Outcome,
		},
	})
}

// ListFiles 返回本次会话生成的文件，最新的在前。
func (h *FeedbackHandler) ListFiles(c *gin.Context) {
	records := h.feedbackService.ListFiles(middleware.SessionID(c))
	files := make([]fileSummary, 0, len(records))
	for _, f := range records {
		files = append(files, summarize(f))
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": files})
}

// DownloadFile 以附件形式返回文件内容。
func (h *FeedbackHandler) DownloadFile(c *gin.Context) {
	rec, err := h.feedbackService.Download(middleware.SessionID(c), c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(rec.Content))
}

// Health 报告服务状态与远端存储模式。
func (h *FeedbackHandler) Health(c *gin.Context) {
	remote := h.feedbackService.RemoteStatus()
	mode := remote.Backend
	if !remote.Enabled {
		mode = "local-only"
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "ok",
		"data": gin.H{
			"remote": remote,
			"mode":   mode,
		},
	})
}
