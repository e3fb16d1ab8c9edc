package handler

import (
	"github.com/gin-gonic/gin"

	"pand-feedback-go/internal/middleware"
	"pand-feedback-go/internal/service"
)

// RegisterRoutes 注册全部 API 路由。
func RegisterRoutes(r *gin.Engine, moduleService service.ModuleService, feedbackService service.FeedbackService) {
	moduleHandler := NewModuleHandler(moduleService)
	feedbackHandler := NewFeedbackHandler(feedbackService)
	eventsHandler := NewSessionEventsHandler(feedbackService)

	r.GET("/healthz", feedbackHandler.Health)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/modules", moduleHandler.ListModules)
		apiV1.GET("/modules/:id", moduleHandler.GetModule)
		apiV1.GET("/feedback-types", moduleHandler.ListFeedbackTypes)

		session := apiV1.Group("/session")
		session.Use(middleware.SessionCookie())
		{
			session.GET("", feedbackHandler.GetSession)
			session.PUT("/draft", feedbackHandler.UpdateDraft)
			session.POST("/submit", feedbackHandler.Submit)
			session.GET("/files", feedbackHandler.ListFiles)
			session.GET("/files/:filename", feedbackHandler.DownloadFile)
			session.GET("/events", eventsHandler.Handle)
		}
	}
}
