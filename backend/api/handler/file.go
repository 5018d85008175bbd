package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"chunkvault/backend/common"
	errcode "chunkvault/backend/common/errors"
	"chunkvault/backend/library/stream"
	"chunkvault/backend/model"
	"chunkvault/backend/service"

	"github.com/gin-gonic/gin"
)

var (
	uploadService   *service.UploadService
	downloadService *service.DownloadService
)

// Setup injects the services the handlers delegate to. Called once from main
// after the node registry and token store exist.
func Setup(upload *service.UploadService, download *service.DownloadService) {
	uploadService = upload
	downloadService = download
}

type registerPayload struct {
	FileName    string   `json:"file_name" binding:"required"`
	FileSize    int64    `json:"file_size" binding:"required,gt=0"`
	MimeType    string   `json:"mime_type"`
	FolderID    int64    `json:"folder_id"`
	ChunkHashes []string `json:"chunk_hashes" binding:"required,min=1,dive,hexhash"`
}

func RegisterFile(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		common.RespErrorCode(c, http.StatusBadRequest, errcode.ErrInvalidParam, "invalid registration payload: "+err.Error())
		return
	}

	userID := c.GetInt64("user_id")
	result, err := uploadService.Register(c.Request.Context(), userID, service.RegisterRequest{
		FileName:    payload.FileName,
		FileSize:    payload.FileSize,
		MimeType:    payload.MimeType,
		FolderID:    payload.FolderID,
		ChunkHashes: payload.ChunkHashes,
	})
	if err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccess(c, result)
}

func UploadChunk(c *gin.Context) {
	fileID := c.Param("id")
	hash := c.Param("hash")
	tok := chunkToken(c)

	// One byte over the chunk size is enough to know the payload is invalid.
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, common.ChunkSize+1))
	if err != nil {
		common.RespErrorCode(c, http.StatusBadRequest, errcode.ErrInvalidParam, "failed to read chunk payload: "+err.Error())
		return
	}

	userID := c.GetInt64("user_id")
	if _, err := uploadService.WriteChunk(c.Request.Context(), userID, fileID, hash, tok, data); err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccessStr(c, "chunk stored")
}

func CompleteFile(c *gin.Context) {
	userID := c.GetInt64("user_id")
	result, err := uploadService.Complete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccess(c, gin.H{
		"status":     "complete",
		"used_bytes": result.UsedBytes,
	})
}

func RequestDownload(c *gin.Context) {
	userID := c.GetInt64("user_id")
	manifest, err := downloadService.RequestDownload(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccess(c, manifest)
}

// DownloadChunk streams one chunk, gated by a download-scoped token.
func DownloadChunk(c *gin.Context) {
	fileID := c.Param("id")
	hash := c.Param("hash")

	rc, chunk, err := downloadService.OpenChunk(c.Request.Context(), fileID, hash, chunkToken(c))
	if err != nil {
		respServiceError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, chunk.Size, chunk.MimeType, rc, nil)
}

// DownloadFile reconstructs the whole file, or just the requested byte range
// when the client sends a Range header.
func DownloadFile(c *gin.Context) {
	userID := c.GetInt64("user_id")
	fileID := c.Param("id")
	ctx := c.Request.Context()

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		rc, file, err := downloadService.OpenFull(ctx, userID, fileID)
		if err != nil {
			respServiceError(c, err)
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, file.FileSize, file.MimeType, rc, map[string]string{
			"Accept-Ranges":       "bytes",
			"Content-Disposition": `attachment; filename="` + file.FileName + `"`,
		})
		return
	}

	file, err := model.GetFileForUser(fileID, userID, false)
	if err != nil {
		respServiceError(c, service.ErrFileNotFound)
		return
	}
	start, end, ok := ParseRangeHeader(rangeHeader, file.FileSize)
	if !ok {
		c.Header("Content-Range", "bytes */"+strconv.FormatInt(file.FileSize, 10))
		common.RespErrorStr(c, http.StatusRequestedRangeNotSatisfiable, "unsatisfiable range")
		return
	}

	rc, file, err := downloadService.OpenRange(ctx, userID, fileID, start, end)
	if err != nil {
		respServiceError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(file.FileSize, 10))
	c.Header("Accept-Ranges", "bytes")
	c.DataFromReader(http.StatusPartialContent, end-start+1, file.MimeType, rc, nil)
}

func GetFiles(c *gin.Context) {
	userID := c.GetInt64("user_id")
	p, _ := strconv.Atoi(c.Query("p"))
	if p < 0 {
		p = 0
	}
	files, err := model.GetFilesByUser(userID, p*common.ItemsPerPage, common.ItemsPerPage, false)
	if err != nil {
		common.RespError(c, http.StatusInternalServerError, "failed to fetch files", err)
		return
	}
	common.RespSuccess(c, files)
}

func GetFile(c *gin.Context) {
	userID := c.GetInt64("user_id")
	file, err := model.GetFileForUser(c.Param("id"), userID, false)
	if err != nil {
		common.RespErrorStr(c, http.StatusNotFound, "file not found")
		return
	}
	common.RespSuccess(c, gin.H{
		"file":         file,
		"chunk_hashes": file.ChunkHashes(),
	})
}

func DeleteFile(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if err := uploadService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccessStr(c, "file deleted")
}

func PurgeFile(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if err := uploadService.Purge(c.Request.Context(), userID, c.Param("id")); err != nil {
		respServiceError(c, err)
		return
	}
	common.RespSuccessStr(c, "file purged")
}

// chunkToken accepts the token either as a query parameter or a header, so
// both browser fetches and plain anchors work.
func chunkToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	return c.GetHeader("X-Upload-Token")
}

// ParseRangeHeader understands the single-range forms of an HTTP Range
// header: "bytes=a-b", "bytes=a-" and "bytes=-n". Multi-range requests are
// not supported. Bounds are inclusive; end is clamped to the file size.
func ParseRangeHeader(header string, size int64) (start int64, end int64, ok bool) {
	if size <= 0 || !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix form: the last n bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	if endStr == "" {
		return start, size - 1, true
	}
	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}

// respServiceError maps the service failure taxonomy onto HTTP statuses and
// stable error codes.
func respServiceError(c *gin.Context, err error) {
	var missing *service.MissingChunksError
	switch {
	case errors.Is(err, service.ErrTokenInvalid):
		common.RespErrorCode(c, http.StatusForbidden, errcode.ErrTokenInvalid, err.Error())
	case errors.Is(err, service.ErrHashMismatch):
		common.RespErrorCode(c, http.StatusBadRequest, errcode.ErrHashMismatch, err.Error())
	case errors.Is(err, service.ErrEmptyManifest):
		common.RespErrorCode(c, http.StatusBadRequest, errcode.ErrEmptyManifest, err.Error())
	case errors.Is(err, service.ErrBadManifest):
		common.RespErrorCode(c, http.StatusBadRequest, errcode.ErrBadManifest, err.Error())
	case errors.Is(err, service.ErrFileNotFound):
		common.RespErrorCode(c, http.StatusNotFound, errcode.ErrFileNotFound, err.Error())
	case errors.Is(err, service.ErrChunkNotFound):
		common.RespErrorCode(c, http.StatusNotFound, errcode.ErrChunkNotFound, err.Error())
	case errors.Is(err, service.ErrFileNotReady):
		common.RespErrorCode(c, http.StatusConflict, errcode.ErrFileNotReady, err.Error())
	case errors.As(err, &missing):
		common.RespErrorCodeWithData(c, http.StatusConflict, errcode.ErrChunksMissing,
			"file is not ready, re-upload the missing chunks", gin.H{
				"missing": missing.Missing,
			})
	case errors.Is(err, service.ErrNodeUnavailable):
		common.RespErrorCode(c, http.StatusServiceUnavailable, errcode.ErrNodeUnavailable, "storage node unavailable, retry later")
	case errors.Is(err, stream.ErrInvalidRange):
		common.RespErrorCode(c, http.StatusRequestedRangeNotSatisfiable, errcode.ErrBadRange, err.Error())
	default:
		common.RespErrorCode(c, http.StatusInternalServerError, errcode.ErrInternalServer, "internal error")
	}
}
