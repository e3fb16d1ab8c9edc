// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pand-feedback-go/internal/service"
)

// ModuleHandler 负责模块目录相关的 API 请求。
type ModuleHandler struct {
	moduleService service.ModuleService
}

// NewModuleHandler 创建一个新的 ModuleHandler 实例。
func NewModuleHandler(moduleService service.ModuleService) *ModuleHandler {
	return &ModuleHandler{moduleService: moduleService}
}

// ListModules 返回全部模块。
func (h *ModuleHandler) ListModules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.moduleService.List(),
	})
}

// GetModule 返回单个模块及其输入提示。
func (h *ModuleHandler) GetModule(c *gin.Context) {
	mod, err := h.moduleService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownModule) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服務器內部錯誤"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"module":      mod,
			"placeholder": mod.PlaceholderHint(),
		},
	})
}

// ListFeedbackTypes 返回反馈类型选项。
func (h *ModuleHandler) ListFeedbackTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.moduleService.FeedbackTypes(),
	})
}
