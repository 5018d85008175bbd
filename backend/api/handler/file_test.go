package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"chunkvault/backend/api/middleware"
	"chunkvault/backend/common"
	"chunkvault/backend/library/hashutil"
	"chunkvault/backend/library/storage"
	"chunkvault/backend/library/token"
	"chunkvault/backend/model"
	"chunkvault/backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.JWTSecret = "handler-test-secret"
	common.RedisEnabled = false
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	common.ChunkSize = 10
	t.Cleanup(func() { common.ChunkSize = common.DefaultChunkSize })

	common.SQLitePath = filepath.Join(t.TempDir(), "handler_test.db")
	require.NoError(t, model.InitDB())
	t.Cleanup(func() { _ = model.CloseDB() })

	reg, err := storage.NewRegistry([]*storage.Node{
		{ID: "node-1", Region: "local", Writable: true, Store: storage.NewMemoryStore()},
	})
	require.NoError(t, err)
	tokens := token.NewStore()
	Setup(service.NewUploadService(tokens, reg), service.NewDownloadService(tokens, reg))
	SetupStatus(reg)
	RegisterValidators()

	router := gin.New()
	api := router.Group("/api")
	api.GET("/status", GetStatus)
	fileRoute := api.Group("/file")
	fileRoute.Use(middleware.JWTAuth())
	{
		fileRoute.POST("/register", RegisterFile)
		fileRoute.PUT("/:id/complete", CompleteFile)
		fileRoute.POST("/:id/chunk/:hash", UploadChunk)
		fileRoute.GET("/:id/chunk/:hash", DownloadChunk)
		fileRoute.POST("/:id/download", RequestDownload)
		fileRoute.GET("/:id/download", DownloadFile)
		fileRoute.GET("/:id", GetFile)
		fileRoute.DELETE("/:id", DeleteFile)
	}
	return router
}

func authedRequest(t *testing.T, router *gin.Engine, method string, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	jwt, err := service.GenerateToken(1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+jwt)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

// registerOverHTTP drives the whole upload flow through the HTTP surface and
// returns the file id.
func registerOverHTTP(t *testing.T, router *gin.Engine, data []byte) string {
	t.Helper()
	var hashes []string
	var chunks [][]byte
	for off := 0; off < len(data); off += int(common.ChunkSize) {
		end := off + int(common.ChunkSize)
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
		hashes = append(hashes, hashutil.SumBytes(data[off:end]))
	}

	payload, _ := json.Marshal(gin.H{
		"file_name":    "flow.bin",
		"file_size":    len(data),
		"chunk_hashes": hashes,
	})
	w := authedRequest(t, router, http.MethodPost, "/api/file/register", payload, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reg := decodeData(t, w)
	fileID := reg["file_id"].(string)
	byHash := make(map[string][]byte)
	for i, h := range hashes {
		byHash[h] = chunks[i]
	}
	for _, entry := range reg["chunks_to_upload"].([]any) {
		ct := entry.(map[string]any)
		hash := ct["hash"].(string)
		tok := ct["token"].(string)
		w := authedRequest(t, router, http.MethodPost,
			"/api/file/"+fileID+"/chunk/"+hash+"?token="+tok, byHash[hash], nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	return fileID
}

func TestStatusEndpoint(t *testing.T) {
	router := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, common.Version, data["version"])
}

func TestAuthRequired(t *testing.T) {
	router := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/file/register", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_RejectsBadDigests(t *testing.T) {
	router := setupRouter(t)
	payload, _ := json.Marshal(gin.H{
		"file_name":    "a.bin",
		"file_size":    10,
		"chunk_hashes": []string{"zzz"},
	})
	w := authedRequest(t, router, http.MethodPost, "/api/file/register", payload, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadFlow_EndToEnd(t *testing.T) {
	router := setupRouter(t)
	data := []byte("abcdefghijklmnopqrstuvwxy")
	fileID := registerOverHTTP(t, router, data)

	w := authedRequest(t, router, http.MethodPut, "/api/file/"+fileID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completion := decodeData(t, w)
	assert.Equal(t, "complete", completion["status"])
	assert.Equal(t, float64(25), completion["used_bytes"])

	// Full download round-trips the original bytes.
	w = authedRequest(t, router, http.MethodGet, "/api/file/"+fileID+"/download", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, data, w.Body.Bytes())

	// Ranged download answers 206 with just the slice.
	w = authedRequest(t, router, http.MethodGet, "/api/file/"+fileID+"/download", nil, map[string]string{
		"Range": "bytes=5-14",
	})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, data[5:15], w.Body.Bytes())
	assert.Equal(t, "bytes 5-14/25", w.Header().Get("Content-Range"))
}

func TestComplete_MissingChunksListed(t *testing.T) {
	router := setupRouter(t)
	chunk := []byte("0123456789")
	hash := hashutil.SumBytes(chunk)
	payload, _ := json.Marshal(gin.H{
		"file_name":    "a.bin",
		"file_size":    10,
		"chunk_hashes": []string{hash},
	})
	w := authedRequest(t, router, http.MethodPost, "/api/file/register", payload, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fileID := decodeData(t, w)["file_id"].(string)

	w = authedRequest(t, router, http.MethodPut, "/api/file/"+fileID+"/complete", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, []any{any(hash)}, data["missing"].([]any))
}

func TestUploadChunk_BadToken(t *testing.T) {
	router := setupRouter(t)
	chunk := []byte("0123456789")
	hash := hashutil.SumBytes(chunk)
	payload, _ := json.Marshal(gin.H{
		"file_name":    "a.bin",
		"file_size":    10,
		"chunk_hashes": []string{hash},
	})
	w := authedRequest(t, router, http.MethodPost, "/api/file/register", payload, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fileID := decodeData(t, w)["file_id"].(string)

	w = authedRequest(t, router, http.MethodPost, "/api/file/"+fileID+"/chunk/"+hash+"?token=bogus", chunk, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadChunk_WithToken(t *testing.T) {
	router := setupRouter(t)
	data := []byte("abcdefghij")
	fileID := registerOverHTTP(t, router, data)
	w := authedRequest(t, router, http.MethodPut, "/api/file/"+fileID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, http.MethodPost, "/api/file/"+fileID+"/download", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	manifest := decodeData(t, w)
	chunks := manifest["chunks"].([]any)
	require.Len(t, chunks, 1)
	entry := chunks[0].(map[string]any)

	w = authedRequest(t, router, http.MethodGet,
		"/api/file/"+fileID+"/chunk/"+entry["hash"].(string)+"?token="+entry["token"].(string), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, data, w.Body.Bytes())
}

func TestDownload_UnsatisfiableRange(t *testing.T) {
	router := setupRouter(t)
	data := []byte("abcdefghij")
	fileID := registerOverHTTP(t, router, data)
	w := authedRequest(t, router, http.MethodPut, "/api/file/"+fileID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, http.MethodGet, "/api/file/"+fileID+"/download", nil, map[string]string{
		"Range": "bytes=100-200",
	})
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
}

func TestDeleteFile_HidesFromReads(t *testing.T) {
	router := setupRouter(t)
	data := []byte("abcdefghij")
	fileID := registerOverHTTP(t, router, data)
	w := authedRequest(t, router, http.MethodPut, "/api/file/"+fileID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, http.MethodDelete, "/api/file/"+fileID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, http.MethodGet, "/api/file/"+fileID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseRangeHeader(t *testing.T) {
	cases := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-99", 1000, 0, 99, true},
		{"bytes=500-", 1000, 500, 999, true},
		{"bytes=-100", 1000, 900, 999, true},
		{"bytes=0-5000", 1000, 0, 999, true},
		{"bytes=-5000", 1000, 0, 999, true},
		{"bytes=1000-1001", 1000, 0, 0, false},
		{"bytes=5-2", 1000, 0, 0, false},
		{"bytes=0-10,20-30", 1000, 0, 0, false},
		{"items=0-10", 1000, 0, 0, false},
		{"bytes=abc-10", 1000, 0, 0, false},
		{"bytes=-0", 1000, 0, 0, false},
		{"bytes=0-0", 0, 0, 0, false},
	}
	for _, tc := range cases {
		start, end, ok := ParseRangeHeader(tc.header, tc.size)
		assert.Equal(t, tc.ok, ok, tc.header)
		if tc.ok {
			assert.Equal(t, tc.start, start, tc.header)
			assert.Equal(t, tc.end, end, tc.header)
		}
	}
}
