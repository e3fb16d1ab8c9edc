package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/internal/middleware"
	"pand-feedback-go/internal/model"
	"pand-feedback-go/internal/repository"
	"pand-feedback-go/internal/service"
	"pand-feedback-go/pkg/export"
	"pand-feedback-go/pkg/github"
)

// ── helpers ─────────────────────────────────────────────────────────

type fakeGitHub struct {
	srv      *httptest.Server
	hits     int32
	lastPath atomic.Value
	lastBody atomic.Value
}

func newFakeGitHub(t *testing.T, status int, body string) *fakeGitHub {
	t.Helper()
	return newGatedGitHub(t, status, body, nil)
}

// newGatedGitHub 在 gate 关闭之前不返回响应。
func newGatedGitHub(t *testing.T, status int, body string, gate <-chan struct{}) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.hits, 1)
		if gate != nil {
			<-gate
		}
		f.lastPath.Store(r.URL.Path)
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.lastBody.Store(payload)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

type testServer struct {
	router *gin.Engine
	dir    string
}

func newTestServer(t *testing.T, gh *fakeGitHub, token string, opts ...service.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	baseURL := "http://127.0.0.1:1"
	if gh != nil {
		baseURL = gh.srv.URL
	}
	client := github.NewClient(config.GitHubConfig{
		APIBaseURL: baseURL,
		Owner:      "Lance1102",
		Repo:       "pand-erp-feedback",
		ExportDir:  "data/exports",
		Branch:     "master",
		Token:      token,
	})
	dir := t.TempDir()
	svc := service.NewFeedbackService(
		repository.NewSessionRepository(50*time.Millisecond),
		repository.NewMemoryInFlightGuard(),
		client,
		export.NewLocalWriter(dir),
		nil,
		opts...,
	)

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	RegisterRoutes(r, service.NewModuleService(), svc)
	return &testServer{router: r, dir: dir}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

type submitData struct {
	File struct {
		Filename    string `json:"filename"`
		Module      string `json:"module"`
		DownloadURL string `json:"downloadUrl"`
	} `json:"file"`
	Content string              `json:"content"`
	Outcome model.CommitOutcome `json:"outcome"`
}

func submitPayload() map[string]string {
	return map[string]string{
		"moduleId":     "P-MES",
		"reviewerName": "採購部 Jill",
		"feedbackType": "風險",
		"body":         "測試",
	}
}

// ── modules ─────────────────────────────────────────────────────────

func TestListModules(t *testing.T) {
	s := newTestServer(t, nil, "")

	w, env := s.do(t, http.MethodGet, "/api/v1/modules", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var mods []model.Module
	require.NoError(t, json.Unmarshal(env.Data, &mods))
	require.Len(t, mods, 7)
	assert.Equal(t, "P-CIA", mods[0].ID)
	assert.Equal(t, "SITE_OPS", mods[6].ID)
}

func TestGetModule(t *testing.T) {
	s := newTestServer(t, nil, "")

	w, env := s.do(t, http.MethodGet, "/api/v1/modules/P-MES", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Module      model.Module `json:"module"`
		Placeholder string       `json:"placeholder"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "P-MES 製造執行", data.Module.Name)
	assert.Equal(t, "請針對 P-MES 製造執行 提出具體意見...\n例如：建議在剩料回抵增加二次確認機制。", data.Placeholder)

	w, _ = s.do(t, http.MethodGet, "/api/v1/modules/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFeedbackTypes(t *testing.T) {
	s := newTestServer(t, nil, "")

	_, env := s.do(t, http.MethodGet, "/api/v1/feedback-types", "", nil)
	var types []model.FeedbackTypeOption
	require.NoError(t, json.Unmarshal(env.Data, &types))
	require.Len(t, types, 4)
	assert.Equal(t, model.FeedbackSuggestion, types[0].Value)
}

// ── submit ──────────────────────────────────────────────────────────

func TestSubmit_EndToEnd(t *testing.T) {
	gh := newFakeGitHub(t, http.StatusCreated, `{"commit":{"sha":"abc"}}`)
	fixed := time.Date(2025, time.January, 8, 14, 5, 9, 0, time.FixedZone("CST", 8*60*60))
	s := newTestServer(t, gh, "token", service.WithClock(func() time.Time { return fixed }), service.WithLocation(fixed.Location()))
	sid := uuid.NewString()

	w, env := s.do(t, http.MethodPost, "/api/v1/session/submit", sid, submitPayload())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.MessageSubmitted, env.Message)

	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	const filename = "2025-01-08_14-05_PMES製造執行_採購部Jill_風險.txt"
	assert.Equal(t, filename, data.File.Filename)
	assert.True(t, data.Outcome.OK)
	assert.Equal(t, model.CommitCommitted, data.Outcome.Status)
	assert.Equal(t, model.MessageCommitted, data.Outcome.Message)
	assert.Contains(t, data.Content, "【反饋內容詳述】\n測試\n\n")

	// 远端收到同一份内容
	require.Equal(t, int32(1), atomic.LoadInt32(&gh.hits))
	assert.Equal(t, "/repos/Lance1102/pand-erp-feedback/contents/data/exports/"+filename, gh.lastPath.Load())
	payload := gh.lastBody.Load().(map[string]string)
	decoded, err := base64.StdEncoding.DecodeString(payload["content"])
	require.NoError(t, err)
	assert.Equal(t, data.Content, string(decoded))

	// 本机导出目录也有同一份文件
	assert.FileExists(t, s.dir+"/"+filename)

	// 下载
	w, _ = s.do(t, http.MethodGet, data.File.DownloadURL, sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	disposition := w.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment"))
	assert.Contains(t, disposition, "filename*=utf-8''"+url.PathEscape(filename))
	assert.Equal(t, data.Content, w.Body.String())

	// 会话：内容清空，模块与人员保留
	_, env = s.do(t, http.MethodGet, "/api/v1/session", sid, nil)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Empty(t, snap.Draft.Body)
	assert.Equal(t, "P-MES", snap.Draft.ModuleID)
	assert.Equal(t, "採購部 Jill", snap.Draft.ReviewerName)
	assert.True(t, snap.RemoteEnabled)
	require.Len(t, snap.Files, 1)
}

func TestSubmit_Degraded_NoRequest(t *testing.T) {
	gh := newFakeGitHub(t, http.StatusCreated, `{}`)
	s := newTestServer(t, gh, "")

	w, env := s.do(t, http.MethodPost, "/api/v1/session/submit", uuid.NewString(), submitPayload())
	require.Equal(t, http.StatusOK, w.Code)

	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Outcome.OK)
	assert.Equal(t, model.CommitDegraded, data.Outcome.Status)
	assert.Equal(t, model.MessageLocalOnly, data.Outcome.Message)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.hits))
	assert.NotEmpty(t, data.File.Filename, "local file is still produced")
}

func TestSubmit_RemoteRejected(t *testing.T) {
	gh := newFakeGitHub(t, http.StatusConflict, `{"message":"sha mismatch"}`)
	s := newTestServer(t, gh, "token")

	w, env := s.do(t, http.MethodPost, "/api/v1/session/submit", uuid.NewString(), submitPayload())
	require.Equal(t, http.StatusOK, w.Code)

	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Outcome.OK)
	assert.Equal(t, model.CommitFailed, data.Outcome.Status)
	assert.Contains(t, data.Outcome.Message, "sha mismatch")
}

func TestSubmit_TransportFailure(t *testing.T) {
	s := newTestServer(t, nil, "token")

	w, env := s.do(t, http.MethodPost, "/api/v1/session/submit", uuid.NewString(), submitPayload())
	require.Equal(t, http.StatusOK, w.Code)

	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, model.CommitFailed, data.Outcome.Status)
	assert.Contains(t, data.Outcome.Message, "127.0.0.1:1")
}

func TestSubmit_ValidationErrors(t *testing.T) {
	s := newTestServer(t, nil, "")
	sid := uuid.NewString()

	w, _ := s.do(t, http.MethodPost, "/api/v1/session/submit", sid, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no module selected")

	w, _ = s.do(t, http.MethodPost, "/api/v1/session/submit", sid, map[string]string{"moduleId": "P-CIA"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty body")

	w, _ = s.do(t, http.MethodPost, "/api/v1/session/submit", sid, map[string]string{"feedbackType": "其他"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown type")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/submit", strings.NewReader("{not json"))
	req.Header.Set(middleware.SessionHeader, sid)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_WhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	gh := newGatedGitHub(t, http.StatusCreated, `{}`, gate)
	t.Cleanup(release)
	s := newTestServer(t, gh, "token")
	sid := uuid.NewString()

	first := make(chan int, 1)
	go func() {
		b, _ := json.Marshal(submitPayload())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/submit", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.SessionHeader, sid)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		first <- w.Code
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&gh.hits) == 1 }, 2*time.Second, 5*time.Millisecond)

	// 第二次提交被拒绝，且不改动草稿
	w, _ := s.do(t, http.MethodPost, "/api/v1/session/submit", sid, map[string]string{"body": "第二份"})
	assert.Equal(t, http.StatusConflict, w.Code)
	_, env := s.do(t, http.MethodGet, "/api/v1/session", sid, nil)
	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "測試", snap.Draft.Body)
	assert.True(t, snap.Submitting)

	// 提交期间编辑的内容在提交完成后保留
	w, _ = s.do(t, http.MethodPut, "/api/v1/session/draft", sid, map[string]string{"body": "編輯中"})
	require.Equal(t, http.StatusOK, w.Code)

	release()
	select {
	case code := <-first:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("first submission did not finish")
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/session", sid, nil)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "編輯中", snap.Draft.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gh.hits))
}

func TestUpdateDraftThenSubmit(t *testing.T) {
	s := newTestServer(t, nil, "")
	sid := uuid.NewString()

	w, env := s.do(t, http.MethodPut, "/api/v1/session/draft", sid, map[string]string{"moduleId": "PROCUREMENT", "body": "LINE 模板"})
	require.Equal(t, http.StatusOK, w.Code)
	var draft model.Draft
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Equal(t, "PROCUREMENT", draft.ModuleID)
	assert.Equal(t, model.FeedbackSuggestion, draft.FeedbackType)

	w, env = s.do(t, http.MethodPost, "/api/v1/session/submit", sid, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, strings.HasSuffix(data.File.Filename, "_採購與通訊模組_匿名_建議.txt"))
}

func TestFilesAreScopedToSession(t *testing.T) {
	s := newTestServer(t, nil, "")
	a, b := uuid.NewString(), uuid.NewString()

	_, env := s.do(t, http.MethodPost, "/api/v1/session/submit", a, submitPayload())
	var data submitData
	require.NoError(t, json.Unmarshal(env.Data, &data))

	_, env = s.do(t, http.MethodGet, "/api/v1/session/files", a, nil)
	var files []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &files))
	require.Len(t, files, 1)
	assert.NotContains(t, files[0], "content")

	_, env = s.do(t, http.MethodGet, "/api/v1/session/files", b, nil)
	require.NoError(t, json.Unmarshal(env.Data, &files))
	assert.Empty(t, files)

	w, _ := s.do(t, http.MethodGet, data.File.DownloadURL, b, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, "")

	w, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Mode   string               `json:"mode"`
		Remote service.RemoteStatus `json:"remote"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "local-only", data.Mode)
	assert.Equal(t, config.BackendGitHub, data.Remote.Backend)
	assert.False(t, data.Remote.Enabled)
}

// ── websocket ───────────────────────────────────────────────────────

func TestSessionEvents(t *testing.T) {
	gh := newFakeGitHub(t, http.StatusCreated, `{}`)
	s := newTestServer(t, gh, "token")
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	sid := uuid.NewString()

	header := http.Header{}
	header.Set(middleware.SessionHeader, sid)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	type event struct {
		Type string                `json:"type"`
		Data model.SessionSnapshot `json:"data"`
	}
	read := func() event {
		var evt event
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&evt))
		return evt
	}

	first := read()
	assert.Equal(t, "session", first.Type)
	assert.Equal(t, sid, first.Data.SessionID)
	assert.True(t, first.Data.RemoteEnabled)

	w, _ := s.do(t, http.MethodPost, "/api/v1/session/submit", sid, submitPayload())
	require.Equal(t, http.StatusOK, w.Code)

	// 等到提交结果出现，再等到显示时长结束后被清除
	var sawCommitted, sawCleared bool
	for i := 0; i < 20 && !sawCleared; i++ {
		evt := read()
		if evt.Data.Outcome != nil && evt.Data.Outcome.Status == model.CommitCommitted {
			sawCommitted = true
		}
		if sawCommitted && evt.Data.Outcome == nil && evt.Data.Phase == model.PhaseIdle {
			sawCleared = true
		}
	}
	assert.True(t, sawCommitted)
	assert.True(t, sawCleared)
}
