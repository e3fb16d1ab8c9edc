// Package github 通过 GitHub contents API 把反馈文件提交到远端仓库。
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/internal/model"
	"pand-feedback-go/pkg/log"
)

// 读取错误响应体的上限。
const maxErrorBody = 1 << 20

// Client 是 GitHub contents API 的客户端。
type Client struct {
	cfg    config.GitHubConfig
	client *http.Client
}

// Option 用于定制 Client。
type Option func(*Client)

// WithHTTPClient 替换底层的 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient 创建一个新的 GitHub 客户端实例。
func NewClient(cfg config.GitHubConfig, opts ...Option) *Client {
	hc := &http.Client{}
	if cfg.TimeoutSeconds > 0 {
		hc.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{cfg: cfg, client: hc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled 报告是否配置了写入凭证。
func (c *Client) Enabled() bool {
	return c.cfg.Token != ""
}

// Name 返回远端存储的名称。
func (c *Client) Name() string {
	return config.BackendGitHub
}

type putContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
}

type putContentResponse struct {
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// RemotePath 返回文件在仓库中的路径。
func (c *Client) RemotePath(filename string) string {
	return path.Join(c.cfg.ExportDir, filename)
}

// Commit 以创建或覆盖的方式把文件写入远端仓库，只尝试一次。
// 不读取现有文件的 sha，同路径的文件会被直接覆盖。
// 所有失败都转换为 CommitOutcome，不会返回 error。
func (c *Client) Commit(ctx context.Context, filename, content string) model.CommitOutcome {
	if !c.Enabled() {
		log.Infof("[GitHubClient] 未配置 token，跳过远端提交: %s", filename)
		return model.Degraded(model.MessageLocalOnly)
	}

	remotePath := c.RemotePath(filename)
	reqBody := putContentRequest{
		Message: "feedback: " + filename,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Branch:  c.cfg.Branch,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return failed(fmt.Sprintf("無法編碼請求: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(remotePath), bytes.NewReader(reqBytes))
	if err != nil {
		return failed(fmt.Sprintf("無法建立請求: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIVersion != "" {
		req.Header.Set("X-GitHub-Api-Version", c.cfg.APIVersion)
	}

	log.Infof("[GitHubClient] 开始提交文件: %s/%s %s", c.cfg.Owner, c.cfg.Repo, remotePath)
	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[GitHubClient] 调用 contents API 失败, error: %v", err)
		return failed(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var created putContentResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			log.Warnf("[GitHubClient] 无法解析提交响应: %v", err)
		}
		log.Infow("[GitHubClient] 文件提交成功",
			"path", remotePath,
			"status", resp.StatusCode,
			"commit", created.Commit.SHA,
		)
		return model.Committed(model.MessageCommitted)
	}

	reason := errorReason(resp)
	log.Warnw("[GitHubClient] contents API 拒绝提交",
		"path", remotePath,
		"status", resp.Status,
		"reason", reason,
	)
	return failed(reason)
}

func (c *Client) contentsURL(remotePath string) string {
	segments := strings.Split(remotePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(c.cfg.APIBaseURL, "/"),
		url.PathEscape(c.cfg.Owner),
		url.PathEscape(c.cfg.Repo),
		strings.Join(segments, "/"),
	)
}

// errorReason 优先使用响应体中的 message 字段，解析失败时退回状态行。
func errorReason(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return resp.Status
}

func failed(reason string) model.CommitOutcome {
	return model.Failed(fmt.Sprintf(model.MessageFailureFormat, reason))
}
