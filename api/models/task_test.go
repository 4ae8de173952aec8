package models

import "testing"

func TestTaskKindQueue(t *testing.T) {
	cases := map[TaskKind]string{
		KindTranscribe:   QueueAudio,
		KindExtractAudio: QueueAudio,
		KindGIF:          QueueImage,
		KindImage:        QueueImage,
		KindArchive:      QueueImage,
		KindPurge:        QueueMaintenance,
	}
	for kind, queue := range cases {
		if got := kind.Queue(); got != queue {
			t.Errorf("kind %s: expected queue %s, got %s", kind, queue, got)
		}
	}
}

func TestTaskKindValid(t *testing.T) {
	if !KindTranscribe.Valid() {
		t.Error("transcribe should be valid")
	}
	if TaskKind("resample").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestTaskKindRequiresInput(t *testing.T) {
	for _, kind := range []TaskKind{KindTranscribe, KindExtractAudio, KindGIF, KindImage} {
		if !kind.RequiresInput() {
			t.Errorf("kind %s should require an input file", kind)
		}
	}
	if KindArchive.RequiresInput() || KindPurge.RequiresInput() {
		t.Error("archive and purge must be creatable without an input file")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("live statuses must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}
