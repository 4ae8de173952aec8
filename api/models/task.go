package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether a status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TaskKind string

const (
	KindTranscribe   TaskKind = "transcribe"
	KindExtractAudio TaskKind = "extract_audio"
	KindGIF          TaskKind = "gif"
	KindImage        TaskKind = "image"
	KindArchive      TaskKind = "archive"
	KindPurge        TaskKind = "purge"
)

// Queue names double as broker topic names.
const (
	QueueAudio       = "audio_processing"
	QueueImage       = "image_processing"
	QueueMaintenance = "maintenance"
)

func (k TaskKind) Valid() bool {
	switch k {
	case KindTranscribe, KindExtractAudio, KindGIF, KindImage, KindArchive, KindPurge:
		return true
	default:
		return false
	}
}

// RequiresInput reports whether tasks of this kind consume a source file.
// Archive and purge tasks are created from JSON alone.
func (k TaskKind) RequiresInput() bool {
	switch k {
	case KindArchive, KindPurge:
		return false
	default:
		return true
	}
}

func (k TaskKind) Queue() string {
	switch k {
	case KindTranscribe, KindExtractAudio:
		return QueueAudio
	case KindGIF, KindImage, KindArchive:
		return QueueImage
	default:
		return QueueMaintenance
	}
}

type Task struct {
	ID               string
	TraceID          string
	Kind             TaskKind
	Queue            string
	OriginalFilename string
	FilePath         string
	OutputPath       string
	OutputFormat     string
	Status           TaskStatus
	Progress         int
	ErrorMessage     string
	Attempts         int
	Options          map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}
