package handlers

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediaconv/api/config"
	"mediaconv/api/dto"
	"mediaconv/api/middleware"
	"mediaconv/api/models"
	"mediaconv/api/service"
	"mediaconv/api/validation"
)

// TaskService is what the handlers need from the service layer.
type TaskService interface {
	CreateTask(ctx context.Context, traceID string, p *service.CreateTaskParams) (*dto.TaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error)
	GetTaskByTraceID(ctx context.Context, traceID string) (*dto.TaskResponse, error)
	GetTaskResult(ctx context.Context, taskID string) (*dto.ResultResponse, error)
	ResolveDownload(ctx context.Context, taskID string) (*service.Download, error)
}

type TaskHandler struct {
	service TaskService
	cfg     *config.Config
	fetcher *http.Client
	logger  *zap.Logger
}

func NewTaskHandler(service TaskService, cfg *config.Config, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		cfg:     cfg,
		fetcher: &http.Client{Timeout: cfg.FetchTimeout},
		logger:  logger,
	}
}

// Upload accepts a multipart form: file, kind, optional format and options
// (a JSON object). The saved upload is handed to the worker untouched.
func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	kind := models.TaskKind(r.FormValue("kind"))
	if !kind.Valid() {
		h.handleError(w, "Unknown task kind", nil, traceID, http.StatusBadRequest)
		return
	}

	if header.Size > h.cfg.MaxFileSize {
		h.handleError(w, "File too large", validation.ErrFileTooLarge, traceID, http.StatusRequestEntityTooLarge)
		return
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil {
		h.handleError(w, "Invalid file", err, traceID, http.StatusBadRequest)
		return
	}
	if !validation.KindAccepts(kind, fileType) {
		h.handleError(w, "File type not accepted for this kind", validation.ErrKindMismatch, traceID, http.StatusBadRequest)
		return
	}

	options, err := parseOptions(r.FormValue("options"))
	if err != nil {
		h.handleError(w, "Invalid options", err, traceID, http.StatusBadRequest)
		return
	}

	filePath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.handleError(w, "Failed to save file", err, traceID, http.StatusInternalServerError)
		return
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, &service.CreateTaskParams{
		Kind:             kind,
		OriginalFilename: header.Filename,
		FilePath:         filePath,
		OutputFormat:     r.FormValue("format"),
		Options:          options,
	})
	if err != nil {
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.ID),
		zap.String("kind", string(kind)),
		zap.String("filename", header.Filename),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

// CreateFromURL creates a task from a JSON body. Kinds that take a source
// file get it fetched server-side; file-less kinds (archive, purge) are
// enqueued from the JSON alone.
func (h *TaskHandler) CreateFromURL(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.CreateURLTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}

	kind := models.TaskKind(req.Kind)
	if !kind.Valid() {
		h.handleError(w, "Unknown task kind", nil, traceID, http.StatusBadRequest)
		return
	}

	if !kind.RequiresInput() {
		resp, err := h.service.CreateTask(r.Context(), traceID, &service.CreateTaskParams{
			Kind:         kind,
			OutputFormat: req.Format,
			Options:      req.Options,
		})
		if err != nil {
			h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
			return
		}

		h.logger.Info("File-less task accepted",
			zap.String("trace_id", traceID),
			zap.String("task_id", resp.ID),
			zap.String("kind", string(kind)),
		)

		h.respondJSON(w, http.StatusCreated, resp)
		return
	}

	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		h.handleError(w, "Unsupported URL scheme", nil, traceID, http.StatusBadRequest)
		return
	}

	filename := path.Base(strings.SplitN(req.URL, "?", 2)[0])
	filePath, fileType, err := h.fetchURL(r.Context(), req.URL, filename)
	if err != nil {
		h.handleError(w, "Failed to fetch source", err, traceID, http.StatusBadGateway)
		return
	}

	if !validation.KindAccepts(kind, fileType) {
		os.Remove(filePath)
		h.handleError(w, "File type not accepted for this kind", validation.ErrKindMismatch, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, &service.CreateTaskParams{
		Kind:             kind,
		OriginalFilename: filename,
		FilePath:         filePath,
		OutputFormat:     req.Format,
		Options:          req.Options,
	})
	if err != nil {
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("URL source accepted",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.ID),
		zap.String("url", req.URL),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// StatusByTrace looks a task up by its trace ID instead of the task ID.
func (h *TaskHandler) StatusByTrace(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	lookup := r.PathValue("trace_id")
	if lookup == "" {
		h.handleError(w, "Trace ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskByTraceID(r.Context(), lookup)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Result(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskResult(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task result", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	dl, err := h.service.ResolveDownload(r.Context(), taskID)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrTaskNotFound):
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
		case errors.Is(err, dto.ErrTaskNotDone):
			h.handleError(w, "Task has no result yet", err, traceID, http.StatusConflict)
		default:
			h.handleError(w, "Failed to resolve download", err, traceID, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	http.ServeFile(w, r, dl.Path)
}

// BatchDownload streams a zip of the outputs of the requested task IDs.
// Tasks that are missing or unfinished are skipped and listed in a header.
func (h *TaskHandler) BatchDownload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.BatchDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}
	if len(req.TaskIDs) == 0 {
		h.handleError(w, "No task IDs given", nil, traceID, http.StatusBadRequest)
		return
	}

	var downloads []*service.Download
	var skipped []string
	for _, id := range req.TaskIDs {
		dl, err := h.service.ResolveDownload(r.Context(), id)
		if err != nil {
			skipped = append(skipped, id)
			continue
		}
		downloads = append(downloads, dl)
	}
	if len(downloads) == 0 {
		h.handleError(w, "No downloadable results", nil, traceID, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.zip"`)
	if len(skipped) > 0 {
		w.Header().Set("X-Skipped-Tasks", strings.Join(skipped, ","))
	}

	zw := zip.NewWriter(w)
	for _, dl := range downloads {
		if err := addZipEntry(zw, dl); err != nil {
			h.logger.Error("Batch download entry failed",
				zap.String("trace_id", traceID),
				zap.String("path", dl.Path),
				zap.Error(err),
			)
			break
		}
	}
	if err := zw.Close(); err != nil {
		h.logger.Error("Batch download close failed",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	}
}

func addZipEntry(zw *zip.Writer, dl *service.Download) error {
	f, err := os.Open(dl.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.Create(dl.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

func (h *TaskHandler) saveUpload(file io.Reader, originalName string) (string, error) {
	name := uuid.New().String() + strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	filePath := filepath.Join(h.cfg.UploadDir, name)

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath)
		return "", err
	}
	return filePath, nil
}

func (h *TaskHandler) fetchURL(ctx context.Context, url, filename string) (string, validation.FileType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := h.fetcher.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, h.cfg.MaxFileSize+1)
	filePath, err := h.saveUpload(limited, filename)
	if err != nil {
		return "", "", err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", "", err
	}
	if info.Size() > h.cfg.MaxFileSize {
		os.Remove(filePath)
		return "", "", validation.ErrFileTooLarge
	}

	f, err := os.Open(filePath)
	if err != nil {
		os.Remove(filePath)
		return "", "", err
	}
	defer f.Close()

	fileType, err := validation.DetectFileType(f)
	if err != nil {
		os.Remove(filePath)
		return "", "", err
	}
	return filePath, fileType, nil
}

func parseOptions(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var options map[string]any
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, err
	}
	return options, nil
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
