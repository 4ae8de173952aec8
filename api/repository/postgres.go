package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mediaconv/api/database"
	"mediaconv/api/models"
)

const taskColumns = `id, trace_id, kind, queue, original_filename, file_path, output_path,
	output_format, status, progress, error_message, attempts, options,
	created_at, updated_at, completed_at`

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (trace_id, kind, queue, original_filename, file_path, output_format, status, options)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	if task.Options == nil {
		task.Options = map[string]any{}
	}

	err := r.db.Pool.QueryRow(ctx, query,
		task.TraceID,
		task.Kind,
		task.Queue,
		task.OriginalFilename,
		task.FilePath,
		task.OutputFormat,
		task.Status,
		task.Options,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	return err
}

func (r *PostgresRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (r *PostgresRepo) GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE trace_id = $1`, traceID)
	return scanTask(row)
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.TraceID,
		&task.Kind,
		&task.Queue,
		&task.OriginalFilename,
		&task.FilePath,
		&task.OutputPath,
		&task.OutputFormat,
		&task.Status,
		&task.Progress,
		&task.ErrorMessage,
		&task.Attempts,
		&task.Options,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}
