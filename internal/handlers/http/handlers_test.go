package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/services"
	"kalonconnect/internal/infrastructure/middleware"
	filerepo "kalonconnect/internal/infrastructure/repositories/file"
	webrtcinfra "kalonconnect/internal/infrastructure/webrtc"
	"kalonconnect/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	router     *gin.Engine
	auth       services.AuthService
	configPath string
	recordings string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	configPath := filepath.Join(dir, "config", "video-systems.json")
	configService := services.NewVideoConfigService(filerepo.NewVideoConfigRepository(configPath), logger, nil, nil)

	store, err := storage.NewFileStorage(filepath.Join(dir, "recordings"))
	require.NoError(t, err)
	recordingService := services.NewRecordingService(store, 1024, logger, nil)

	sessionService := services.NewSessionService(configService, webrtcinfra.NewSinkFactory(), nil, logger, nil, nil)
	auth := services.NewAuthService("test-secret", time.Minute)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger.Sugar()))

	NewVideoHandler(configService).SetupRoutes(router,
		middleware.AuthMiddleware(auth),
		middleware.RequireRole(auth, domain.RoleAdmin),
	)
	NewRecordingHandler(recordingService, 1024).SetupRoutes(router)
	NewSessionHandler(sessionService, nil).SetupRoutes(router)

	return &testServer{
		router:     router,
		auth:       auth,
		configPath: configPath,
		recordings: filepath.Join(dir, "recordings"),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, role domain.UserRole) string {
	t.Helper()
	token, err := s.auth.GenerateToken("user-1", role)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestVideoConfig_GetServesDefaultsWhenMissing(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/video/config", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "google-meet", body["defaultSystem"])
	assert.Equal(t, []interface{}{"google-meet", "highmesh"}, body["options"])
	assert.Equal(t, "hd", body["videoQuality"])
	assert.NotNil(t, body["waitingRoom"])

	// the default is never written back
	_, err := os.Stat(s.configPath)
	assert.True(t, os.IsNotExist(err))
}

func TestVideoConfig_GetMalformedFile(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.configPath), 0755))
	require.NoError(t, os.WriteFile(s.configPath, []byte("{not json"), 0644))

	w := s.do(t, http.MethodGet, "/api/video/config", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "google-meet", decode(t, w)["defaultSystem"])
}

func TestVideoConfig_OtherMethodsRejected(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := s.do(t, method, "/api/video/config", nil, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)

		body := decode(t, w)
		assert.Equal(t, false, body["ok"])
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
	}
}

func TestVideoConfig_AdminReplace(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, domain.RoleAdmin)

	doc := map[string]interface{}{
		"defaultSystem": "highmesh",
		"options":       []string{"highmesh", "google-meet"},
		"videoQuality":  "sd",
		"recording":     map[string]interface{}{"autoStart": true, "storagePath": "/srv/rec"},
	}

	w := s.do(t, http.MethodPut, "/api/admin/video/config", doc, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/video/config", nil, "")
	body := decode(t, w)
	assert.Equal(t, "highmesh", body["defaultSystem"])
	assert.Equal(t, "sd", body["videoQuality"])
	assert.Nil(t, body["waitingRoom"])

	w = s.do(t, http.MethodGet, "/api/admin/video/config", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVideoConfig_AdminRejectsInvalid(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, domain.RoleAdmin)

	doc := map[string]interface{}{
		"defaultSystem": "highmesh",
		"options":       []string{"google-meet"},
		"videoQuality":  "hd",
		"recording":     map[string]interface{}{"storagePath": "data/recordings"},
	}
	w := s.do(t, http.MethodPut, "/api/admin/video/config", doc, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, w)["code"])

	w = s.do(t, http.MethodPut, "/api/admin/video/config", "{", admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := os.Stat(s.configPath)
	assert.True(t, os.IsNotExist(err))
}

func TestVideoConfig_AdminRequiresRole(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/admin/video/config", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, "/api/admin/video/config", map[string]string{}, s.token(t, domain.RoleClinician))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecording_Store(t *testing.T) {
	s := newTestServer(t)
	payload := base64.StdEncoding.EncodeToString([]byte("frames"))

	for path, name := range map[string]string{
		"/api/video/record":      "call one.webm",
		"/api/recordings/upload": "../../etc/passwd.mp4",
	} {
		w := s.do(t, http.MethodPost, path, map[string]string{"filename": name, "data": payload}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		body := decode(t, w)
		assert.Equal(t, true, body["ok"])
		rel := body["path"].(string)
		assert.True(t, strings.HasPrefix(rel, "recordings/"))

		stored := strings.TrimPrefix(rel, "recordings/")
		assert.NotContains(t, stored, "/")
		assert.NotContains(t, stored, "..")
		assert.FileExists(t, filepath.Join(s.recordings, stored))
	}
}

func TestRecording_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing data", map[string]string{"filename": "a.webm"}, http.StatusBadRequest},
		{"missing filename", map[string]string{"data": "eA=="}, http.StatusBadRequest},
		{"bad base64", map[string]string{"filename": "a.webm", "data": "%%%"}, http.StatusBadRequest},
		{"not json", "nope", http.StatusBadRequest},
		{"over limit", map[string]string{"filename": "a.webm", "data": base64.StdEncoding.EncodeToString(make([]byte, 2048))}, http.StatusRequestEntityTooLarge},
		{"body over limit", map[string]string{"filename": "a.webm", "data": strings.Repeat("A", 16*1024)}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/recordings/upload", tt.body, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, false, decode(t, w)["ok"])
		})
	}

	entries, err := os.ReadDir(s.recordings)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/video/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode(t, w)["session"].(map[string]interface{})
	id := session["id"].(string)
	assert.Equal(t, "google-meet", session["system"])

	w = s.do(t, http.MethodPost, "/api/video/sessions/"+id+"/sink", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["sink_id"]

	w = s.do(t, http.MethodPost, "/api/video/sessions/"+id+"/sink", nil, "")
	assert.Equal(t, first, decode(t, w)["sink_id"])

	w = s.do(t, http.MethodDelete, "/api/video/sessions/"+id+"/sink", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/video/sessions/"+id+"/sink", nil, "")
	assert.NotEqual(t, first, decode(t, w)["sink_id"])

	w = s.do(t, http.MethodPost, "/api/video/sessions/"+id+"/release", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["clean"])

	w = s.do(t, http.MethodDelete, "/api/video/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/video/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_BadRequests(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/video/sessions", map[string]string{"system": "zoom"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/video/sessions/bad%20id", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/video/sessions/missing/answer", map[string]string{"type": "offer", "sdp": "v=0"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
