package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinished means the row is already terminal; the update was a no-op.
	ErrTaskFinished = errors.New("task already finished")
)

// Task is the worker's view of a task row.
type Task struct {
	ID               string
	TraceID          string
	Kind             string
	OriginalFilename string
	FilePath         string
	OutputPath       string
	OutputFormat     string
	Status           string
	Attempts         int
	Options          map[string]any
	CreatedAt        time.Time
}

type Repository interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	MarkProcessing(ctx context.Context, id string) error
	SetProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, outputPath string) error
	Fail(ctx context.Context, id string, errMsg string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error)
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetTask(ctx context.Context, id string) (*Task, error) {
	query := `
		SELECT id, trace_id, kind, original_filename, file_path, output_path,
		       output_format, status, attempts, options, created_at
		FROM tasks
		WHERE id = $1
	`

	var task Task
	err := r.db.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.TraceID,
		&task.Kind,
		&task.OriginalFilename,
		&task.FilePath,
		&task.OutputPath,
		&task.OutputFormat,
		&task.Status,
		&task.Attempts,
		&task.Options,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// MarkProcessing claims a task. A terminal row stays terminal: the update
// only matches live rows, so a redelivered message for a finished task
// surfaces as ErrTaskFinished.
func (r *PostgresRepo) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskFinished
	}
	return nil
}

// SetProgress only ever moves progress forward on a live row.
func (r *PostgresRepo) SetProgress(ctx context.Context, id string, progress int) error {
	query := `
		UPDATE tasks
		SET progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	_, err := r.db.Exec(ctx, query, id, progress)
	return err
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, outputPath string) error {
	query := `
		UPDATE tasks
		SET status = 'completed', progress = 100, output_path = $2,
		    error_message = '', updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	result, err := r.db.Exec(ctx, query, id, outputPath)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskFinished
	}
	return nil
}

func (r *PostgresRepo) Fail(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE tasks
		SET status = 'failed', error_message = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	result, err := r.db.Exec(ctx, query, id, errMsg)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskFinished
	}
	return nil
}

// DeleteExpired removes rows older than the cutoff and returns the file
// paths they referenced so the caller can unlink them.
func (r *PostgresRepo) DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		DELETE FROM tasks
		WHERE created_at < $1
		RETURNING file_path, output_path
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var filePath, outputPath string
		if err := rows.Scan(&filePath, &outputPath); err != nil {
			return paths, err
		}
		if filePath != "" {
			paths = append(paths, filePath)
		}
		if outputPath != "" {
			paths = append(paths, outputPath)
		}
	}
	return paths, rows.Err()
}
