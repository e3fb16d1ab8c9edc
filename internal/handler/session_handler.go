package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pand-feedback-go/internal/middleware"
	"pand-feedback-go/internal/service"
	"pand-feedback-go/pkg/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// SessionEventsHandler 通过 WebSocket 推送会话状态变化，前端据此显示与清除提交结果横幅。
type SessionEventsHandler struct {
	feedbackService service.FeedbackService
}

// NewSessionEventsHandler 创建一个新的 SessionEventsHandler。
func NewSessionEventsHandler(feedbackService service.FeedbackService) *SessionEventsHandler {
	return &SessionEventsHandler{feedbackService: feedbackService}
}

// Handle 升级连接并持续推送快照，直到客户端断开。
func (h *SessionEventsHandler) Handle(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feedbackService.Subscribe(sessionID)
	defer cancel()
	remoteEnabled := h.feedbackService.RemoteStatus().Enabled

	// 读循环只用于感知断开与处理 pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	log.Infof("会话事件连接已建立: %s", sessionID)
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			snap.RemoteEnabled = remoteEnabled
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(gin.H{"type": "session", "data": snap}); err != nil {
				log.Warnf("推送会话状态失败: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Infof("会话事件连接已关闭: %s", sessionID)
			return
		}
	}
}
