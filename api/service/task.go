package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mediaconv/api/cache"
	"mediaconv/api/dto"
	"mediaconv/api/kafka"
	"mediaconv/api/models"
	"mediaconv/api/repository"
)

// StatusCache is the slice of the redis cache the service needs; satisfied
// by cache.StatusCache.
type StatusCache interface {
	GetStatus(ctx context.Context, taskID string) (models.TaskStatus, error)
	SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error
	GetProgress(ctx context.Context, taskID string) (int, error)
	SetProgress(ctx context.Context, taskID string, progress int) error
}

var _ StatusCache = (*cache.StatusCache)(nil)

type CreateTaskParams struct {
	Kind             models.TaskKind
	OriginalFilename string
	FilePath         string
	OutputFormat     string
	Options          map[string]any
}

type Download struct {
	Path     string
	Filename string
}

type TaskService struct {
	repo     repository.Repository
	cache    StatusCache
	producer kafka.Producer
}

func NewTaskService(repo repository.Repository, cache StatusCache, producer kafka.Producer) *TaskService {
	return &TaskService{
		repo:     repo,
		cache:    cache,
		producer: producer,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, traceID string, p *CreateTaskParams) (*dto.TaskResponse, error) {
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("unknown task kind %q", p.Kind)
	}

	task := &models.Task{
		TraceID:          traceID,
		Kind:             p.Kind,
		Queue:            p.Kind.Queue(),
		OriginalFilename: p.OriginalFilename,
		FilePath:         p.FilePath,
		OutputFormat:     p.OutputFormat,
		Status:           models.StatusPending,
		Options:          p.Options,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	// Cache write failures are not fatal: status polling falls back to the DB.
	_ = s.cache.SetStatus(ctx, task.ID, models.StatusPending)

	msg := &kafka.TaskMessage{
		TaskID:   task.ID,
		TraceID:  traceID,
		Kind:     string(task.Kind),
		FilePath: task.FilePath,
		Options:  task.Options,
	}
	if err := s.producer.SendTaskMessage(ctx, task.Queue, msg); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return s.toResponse(task), nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error) {
	status, err := s.cache.GetStatus(ctx, taskID)
	if err == nil {
		progress, _ := s.cache.GetProgress(ctx, taskID)
		return &dto.TaskResponse{
			ID:       taskID,
			Status:   string(status),
			Progress: progress,
		}, nil
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	_ = s.cache.SetStatus(ctx, task.ID, task.Status)
	_ = s.cache.SetProgress(ctx, task.ID, task.Progress)

	return s.toResponse(task), nil
}

// GetTaskByTraceID resolves a task by the trace ID handed out at creation,
// for clients that kept the X-Trace-ID header rather than the task ID.
func (s *TaskService) GetTaskByTraceID(ctx context.Context, traceID string) (*dto.TaskResponse, error) {
	task, err := s.repo.GetTaskByTraceID(ctx, traceID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}
	return s.toResponse(task), nil
}

func (s *TaskService) GetTaskResult(ctx context.Context, taskID string) (*dto.ResultResponse, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	return &dto.ResultResponse{
		TaskResponse: *s.toResponse(task),
		OutputFormat: task.OutputFormat,
		OutputPath:   task.OutputPath,
		Options:      task.Options,
	}, nil
}

// ResolveDownload locates the output file of a completed task.
func (s *TaskService) ResolveDownload(ctx context.Context, taskID string) (*Download, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	if task.Status != models.StatusCompleted || task.OutputPath == "" {
		return nil, dto.ErrTaskNotDone
	}
	if _, err := os.Stat(task.OutputPath); err != nil {
		return nil, fmt.Errorf("output file missing: %w", err)
	}

	return &Download{
		Path:     task.OutputPath,
		Filename: downloadName(task),
	}, nil
}

func downloadName(task *models.Task) string {
	if task.OriginalFilename == "" {
		return task.ID + outputExt(task)
	}
	return task.OriginalFilename + outputExt(task)
}

func outputExt(task *models.Task) string {
	switch task.Kind {
	case models.KindTranscribe:
		return ".txt"
	case models.KindGIF:
		return ".gif"
	case models.KindArchive:
		return ".zip"
	default:
		if task.OutputFormat != "" {
			return "." + task.OutputFormat
		}
		return ""
	}
}

func (s *TaskService) toResponse(task *models.Task) *dto.TaskResponse {
	var completedAt *string
	if task.CompletedAt != nil {
		formatted := task.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}

	return &dto.TaskResponse{
		ID:               task.ID,
		TraceID:          task.TraceID,
		Kind:             string(task.Kind),
		OriginalFilename: task.OriginalFilename,
		Status:           string(task.Status),
		Progress:         task.Progress,
		ErrorMessage:     task.ErrorMessage,
		CreatedAt:        task.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		CompletedAt:      completedAt,
	}
}
