package repository

import (
	"context"
	"errors"

	"mediaconv/api/models"
)

var ErrTaskNotFound = errors.New("task not found")

// Repository is the API's view of the task table: create and read. Status,
// progress and result writes belong to the worker.
type Repository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error)
}
