// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"pand-feedback-go/pkg/log"
)

// 请求体与响应体超过该长度时只记录前缀。
const maxLoggedBody = 4 << 10

// bodyLogWriter 用于捕获响应体，最多保留 maxLoggedBody+1 字节
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 同时写入 gin.ResponseWriter 和内部 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody + 1 - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// replayBody 先读出已记录的前缀，再接着读原始请求体。
type replayBody struct {
	io.Reader
	io.Closer
}

// truncate 在不超过 maxLoggedBody 的最后一个字符边界处截断。
func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	cut := maxLoggedBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// RequestLogger 记录每个请求的状态码、耗时与请求/响应体。
// 只记录 JSON 响应体，下载的文件内容不写入日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if body := c.Request.Body; body != nil {
			requestBody, _ = io.ReadAll(io.LimitReader(body, maxLoggedBody+1))
			// 重新设置请求体，以便后续处理函数可以读到完整内容
			c.Request.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(requestBody), body), Closer: body}
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		responseBody := ""
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "application/json") {
			responseBody = truncate(blw.body.String())
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"session", c.GetString(SessionKey),
			"requestBody", truncate(string(requestBody)),
			"responseBody", responseBody,
		)
	}
}
