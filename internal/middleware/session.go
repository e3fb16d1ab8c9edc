package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionKey 是会话 ID 在 gin.Context 中的键。
	SessionKey = "sessionID"
	// SessionCookieName 是保存会话 ID 的 cookie 名称。
	SessionCookieName = "pand_feedback_session"
	// SessionHeader 供非浏览器客户端直接指定会话 ID。
	SessionHeader = "X-Feedback-Session"
)

// SessionCookie 为每个草稿持有者分配会话 ID。优先使用请求头，其次 cookie，都没有时生成新的 ID。
func SessionCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := validSessionID(c.GetHeader(SessionHeader))
		if id == "" {
			if v, err := c.Cookie(SessionCookieName); err == nil {
				id = validSessionID(v)
			}
		}
		if id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, id, 0, "/", "", false, true)
		}
		c.Set(SessionKey, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}

func validSessionID(v string) string {
	id, err := uuid.Parse(v)
	if err != nil {
		return ""
	}
	return id.String()
}

// SessionID 返回当前请求的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}
