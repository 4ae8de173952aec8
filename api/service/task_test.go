package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediaconv/api/dto"
	"mediaconv/api/kafka"
	"mediaconv/api/models"
	"mediaconv/api/repository"
)

type fakeRepo struct {
	tasks     map[string]*models.Task
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: map[string]*models.Task{}}
}

func (f *fakeRepo) CreateTask(ctx context.Context, task *models.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	task.ID = "task-" + task.TraceID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeRepo) GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error) {
	for _, task := range f.tasks {
		if task.TraceID == traceID {
			return task, nil
		}
	}
	return nil, repository.ErrTaskNotFound
}

type fakeCache struct {
	statuses map[string]models.TaskStatus
	progress map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		statuses: map[string]models.TaskStatus{},
		progress: map[string]int{},
	}
}

var errCacheMiss = errors.New("cache miss")

func (f *fakeCache) GetStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	status, ok := f.statuses[taskID]
	if !ok {
		return "", errCacheMiss
	}
	return status, nil
}

func (f *fakeCache) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	f.statuses[taskID] = status
	return nil
}

func (f *fakeCache) GetProgress(ctx context.Context, taskID string) (int, error) {
	progress, ok := f.progress[taskID]
	if !ok {
		return 0, errCacheMiss
	}
	return progress, nil
}

func (f *fakeCache) SetProgress(ctx context.Context, taskID string, progress int) error {
	f.progress[taskID] = progress
	return nil
}

type fakeProducer struct {
	topics   []string
	messages []*kafka.TaskMessage
	sendErr  error
}

func (f *fakeProducer) SendTaskMessage(ctx context.Context, topic string, message *kafka.TaskMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestCreateTask_RoutesToKindQueue(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	producer := &fakeProducer{}
	svc := NewTaskService(repo, cache, producer)

	resp, err := svc.CreateTask(context.Background(), "trace-1", &CreateTaskParams{
		Kind:             models.KindTranscribe,
		OriginalFilename: "talk.mp3",
		FilePath:         "/uploads/talk.mp3",
		Options:          map[string]any{"language": "en"},
	})
	require.NoError(t, err)
	require.Equal(t, string(models.StatusPending), resp.Status)

	require.Len(t, producer.topics, 1)
	require.Equal(t, models.QueueAudio, producer.topics[0])
	require.Equal(t, resp.ID, producer.messages[0].TaskID)
	require.Equal(t, "transcribe", producer.messages[0].Kind)

	require.Equal(t, models.StatusPending, cache.statuses[resp.ID])
}

func TestCreateTask_RejectsUnknownKind(t *testing.T) {
	svc := NewTaskService(newFakeRepo(), newFakeCache(), &fakeProducer{})

	_, err := svc.CreateTask(context.Background(), "trace-1", &CreateTaskParams{
		Kind: models.TaskKind("resample"),
	})
	require.Error(t, err)
}

func TestCreateTask_ProducerFailureSurfaces(t *testing.T) {
	producer := &fakeProducer{sendErr: errors.New("broker down")}
	svc := NewTaskService(newFakeRepo(), newFakeCache(), producer)

	_, err := svc.CreateTask(context.Background(), "trace-1", &CreateTaskParams{
		Kind: models.KindImage,
	})
	require.ErrorContains(t, err, "enqueue task")
}

func TestGetTaskStatus_CacheHitSkipsDB(t *testing.T) {
	cache := newFakeCache()
	cache.statuses["t1"] = models.StatusProcessing
	cache.progress["t1"] = 40

	// Repo is empty: a DB read would report not-found.
	svc := NewTaskService(newFakeRepo(), cache, &fakeProducer{})

	resp, err := svc.GetTaskStatus(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, string(models.StatusProcessing), resp.Status)
	require.Equal(t, 40, resp.Progress)
}

func TestGetTaskStatus_FallsBackToDBAndWarmsCache(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	svc := NewTaskService(repo, cache, &fakeProducer{})

	task := &models.Task{TraceID: "trace-2", Kind: models.KindGIF, Status: models.StatusCompleted, Progress: 100}
	require.NoError(t, repo.CreateTask(context.Background(), task))

	resp, err := svc.GetTaskStatus(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.StatusCompleted), resp.Status)
	require.Equal(t, models.StatusCompleted, cache.statuses[task.ID])
}

func TestGetTaskByTraceID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewTaskService(repo, newFakeCache(), &fakeProducer{})

	task := &models.Task{TraceID: "trace-9", Kind: models.KindImage, Status: models.StatusProcessing, Progress: 30}
	require.NoError(t, repo.CreateTask(context.Background(), task))

	resp, err := svc.GetTaskByTraceID(context.Background(), "trace-9")
	require.NoError(t, err)
	require.Equal(t, task.ID, resp.ID)
	require.Equal(t, string(models.StatusProcessing), resp.Status)

	_, err = svc.GetTaskByTraceID(context.Background(), "no-such-trace")
	require.ErrorIs(t, err, dto.ErrTaskNotFound)
}

func TestGetTaskStatus_NotFound(t *testing.T) {
	svc := NewTaskService(newFakeRepo(), newFakeCache(), &fakeProducer{})

	_, err := svc.GetTaskStatus(context.Background(), "missing")
	require.ErrorIs(t, err, dto.ErrTaskNotFound)
}

func TestResolveDownload(t *testing.T) {
	repo := newFakeRepo()
	svc := NewTaskService(repo, newFakeCache(), &fakeProducer{})

	outPath := filepath.Join(t.TempDir(), "out.gif")
	require.NoError(t, os.WriteFile(outPath, []byte("gif bytes"), 0o644))

	task := &models.Task{TraceID: "trace-3", Kind: models.KindGIF, OriginalFilename: "clip.mp4"}
	require.NoError(t, repo.CreateTask(context.Background(), task))
	task.Status = models.StatusCompleted
	task.OutputPath = outPath

	dl, err := svc.ResolveDownload(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, outPath, dl.Path)
	require.Equal(t, "clip.mp4.gif", dl.Filename)
}

func TestResolveDownload_NotDone(t *testing.T) {
	repo := newFakeRepo()
	svc := NewTaskService(repo, newFakeCache(), &fakeProducer{})

	task := &models.Task{TraceID: "trace-4", Kind: models.KindGIF, Status: models.StatusPending}
	require.NoError(t, repo.CreateTask(context.Background(), task))
	task.Status = models.StatusProcessing

	_, err := svc.ResolveDownload(context.Background(), task.ID)
	require.ErrorIs(t, err, dto.ErrTaskNotDone)
}
