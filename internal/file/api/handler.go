package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/emicklei/go-restful/v3"

	"github.com/gitstash/relay/config"
	"github.com/gitstash/relay/internal/file/service"
	"github.com/gitstash/relay/internal/quota"
	"github.com/gitstash/relay/internal/retention"
	"github.com/gitstash/relay/internal/store"
	"github.com/gitstash/relay/internal/version"
	model "github.com/gitstash/relay/pkg/file"
)

// Multipart overhead headroom on top of the file size ceiling
const maxRequestBody = config.MaxFileSize + 1024*1024

// FileHandler handles upload, download and cleanup requests
type FileHandler struct {
	service       *service.FileService
	cleanupSecret string
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(svc *service.FileService, cleanupSecret string) *FileHandler {
	return &FileHandler{
		service:       svc,
		cleanupSecret: cleanupSecret,
	}
}

// UploadFile handles POST /upload multipart requests
func (h *FileHandler) UploadFile(req *restful.Request, resp *restful.Response) {
	r := req.Request
	r.Body = http.MaxBytesReader(resp, r.Body, maxRequestBody)

	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		writeFileError(resp, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"The uploaded file is too large, the maximum allowed size is 5MB.")
		return
	}

	token := r.FormValue("token")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFileError(resp, http.StatusBadRequest, "MISSING_FILE", "No file part in the request.")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeFileError(resp, http.StatusInternalServerError, "INTERNAL_ERROR",
			fmt.Sprintf("Error reading uploaded file: %v", err))
		return
	}

	result, err := h.service.Upload(r.Context(), &service.UploadParams{
		Token:      token,
		RemoteAddr: remoteHost(r),
		Filename:   header.Filename,
		Content:    content,
	})
	if err != nil {
		writeUploadError(resp, err)
		return
	}

	resp.WriteAsJson(model.UploadResult{
		Success: true,
		Message: "File uploaded successfully.",
		FileURL: fmt.Sprintf("%s/file/%s", baseURL(r), result.Path),
	})
}

// GetFile handles GET /file/{path} requests
func (h *FileHandler) GetFile(req *restful.Request, resp *restful.Response) {
	path := req.PathParameter("path")
	if path == "" {
		writeFileError(resp, http.StatusBadRequest, "INVALID_REQUEST", "Path is required")
		return
	}

	content, err := h.service.GetFile(req.Request.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeFileError(resp, http.StatusNotFound, "NOT_FOUND", "File not found")
		case errors.Is(err, store.ErrThrottled):
			writeFileError(resp, http.StatusTooManyRequests, "STORE_THROTTLED",
				"The server is handling too many requests, please try again later.")
		default:
			writeFileError(resp, http.StatusBadGateway, "STORE_ERROR",
				fmt.Sprintf("Error fetching file: %v", err))
		}
		return
	}

	resp.Header().Set("Content-Type", content.MimeType)
	resp.Header().Set("Content-Length", strconv.Itoa(len(content.Content)))
	resp.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path))
	resp.WriteHeader(http.StatusOK)
	resp.Write(content.Content)
}

// ManualCleanup handles POST /cleanup/{secret} requests
func (h *FileHandler) ManualCleanup(req *restful.Request, resp *restful.Response) {
	secret := req.PathParameter("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cleanupSecret)) != 1 {
		// Do not reveal that the endpoint exists
		writeFileError(resp, http.StatusNotFound, "NOT_FOUND", "File not found")
		return
	}

	r := req.Request
	var policy retention.Policy
	switch r.FormValue("mode") {
	case "age":
		days, err := strconv.Atoi(r.FormValue("days"))
		if err != nil || days < 0 {
			writeFileError(resp, http.StatusBadRequest, "INVALID_POLICY",
				"Retention days must be a non-negative integer.")
			return
		}
		policy = retention.ByAge(days)
	case "count":
		count, err := strconv.Atoi(r.FormValue("count"))
		if err != nil || count < 1 {
			writeFileError(resp, http.StatusBadRequest, "INVALID_POLICY",
				"Delete count must be a positive integer.")
			return
		}
		policy = retention.ByCount(count)
	default:
		writeFileError(resp, http.StatusBadRequest, "INVALID_POLICY", "Invalid cleanup type.")
		return
	}

	result, err := h.service.Cleanup(r.Context(), policy)
	if err != nil {
		if errors.Is(err, store.ErrThrottled) {
			writeFileError(resp, http.StatusTooManyRequests, "STORE_THROTTLED",
				"The server is handling too many requests, please try again later.")
			return
		}
		writeFileError(resp, http.StatusBadGateway, "CLEANUP_FAILED",
			fmt.Sprintf("Cleanup failed: %v", err))
		return
	}

	skipped := make([]model.CleanupSkip, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped = append(skipped, model.CleanupSkip{Path: s.Path, Reason: s.Reason})
	}

	resp.WriteAsJson(model.CleanupResult{
		Success:      true,
		Message:      fmt.Sprintf("Cleanup finished. Deleted %d files.", len(result.Deleted)),
		DeletedCount: len(result.Deleted),
		Deleted:      result.Deleted,
		Skipped:      skipped,
	})
}

// GetVersion handles GET /version requests
func (h *FileHandler) GetVersion(req *restful.Request, resp *restful.Response) {
	resp.WriteAsJson(version.ServerInfo())
}

// writeUploadError maps upload failures to user-facing responses
func writeUploadError(resp *restful.Response, err error) {
	switch {
	case errors.Is(err, service.ErrMissingToken):
		writeFileError(resp, http.StatusBadRequest, "MISSING_TOKEN", "User token is required.")
	case errors.Is(err, service.ErrMissingFile):
		writeFileError(resp, http.StatusBadRequest, "MISSING_FILE", "No file was selected for upload.")
	case errors.Is(err, service.ErrFileTooLarge):
		writeFileError(resp, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"The uploaded file is too large, the maximum allowed size is 5MB.")
	case errors.Is(err, service.ErrRateLimited):
		writeFileError(resp, http.StatusTooManyRequests, "RATE_LIMITED",
			"Too many requests, please slow down.")
	case errors.Is(err, service.ErrInsufficientQuota):
		writeFileError(resp, http.StatusForbidden, "INSUFFICIENT_QUOTA",
			"Your quota is insufficient to upload files.")
	case errors.Is(err, quota.ErrRejected):
		writeFileError(resp, http.StatusUnauthorized, "AUTH_FAILED",
			"User authentication failed or the token is invalid.")
	case errors.Is(err, quota.ErrMalformed):
		writeFileError(resp, http.StatusBadGateway, "MALFORMED_QUOTA",
			"The authorization service returned malformed user information.")
	case errors.Is(err, quota.ErrUnreachable):
		writeFileError(resp, http.StatusBadGateway, "AUTH_UNREACHABLE",
			"Unable to reach the authentication server, please try again later.")
	case errors.Is(err, store.ErrThrottled):
		writeFileError(resp, http.StatusTooManyRequests, "STORE_THROTTLED",
			"The server is handling too many requests, please try again later.")
	case errors.Is(err, store.ErrConflict):
		writeFileError(resp, http.StatusConflict, "CONFLICT", "A file already exists at the generated path.")
	case errors.Is(err, store.ErrUnreachable):
		writeFileError(resp, http.StatusBadGateway, "STORE_UNREACHABLE",
			"Unable to reach the file store, please try again later.")
	default:
		writeFileError(resp, http.StatusInternalServerError, "INTERNAL_ERROR",
			fmt.Sprintf("File upload failed: %v", err))
	}
}

// writeFileError writes a structured error response
func writeFileError(resp *restful.Response, statusCode int, code, message string) {
	resp.WriteHeader(statusCode)
	resp.WriteAsJson(model.FileError{
		Code:    code,
		Message: message,
	})
}

// remoteHost extracts the caller's address without the port
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// baseURL reconstructs the externally visible URL prefix of a request
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
