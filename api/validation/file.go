package validation

import (
	"bytes"
	"io"

	"mediaconv/api/models"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypePDF  FileType = "pdf"
	FileTypeMP4  FileType = "mp4"
	FileTypeWAV  FileType = "wav"
	FileTypeMP3  FileType = "mp3"
	FileTypeOGG  FileType = "ogg"
	FileTypeFLAC FileType = "flac"
	FileTypeWEBM FileType = "webm"
	FileTypeZIP  FileType = "zip"
)

var magicBytes = map[FileType][]byte{
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
	FileTypeGIF:  {0x47, 0x49, 0x46, 0x38},
	FileTypePDF:  {0x25, 0x50, 0x44, 0x46},
	FileTypeOGG:  {0x4F, 0x67, 0x67, 0x53},
	FileTypeFLAC: {0x66, 0x4C, 0x61, 0x43},
	FileTypeWEBM: {0x1A, 0x45, 0xDF, 0xA3},
	FileTypeZIP:  {0x50, 0x4B, 0x03, 0x04},
}

// DetectFileType sniffs the leading bytes of an upload. Formats whose
// signature sits past the start of the file (mp4 ftyp, RIFF/WAVE, bare
// MPEG frames) are handled explicitly after the prefix table.
func DetectFileType(file io.ReadSeeker) (FileType, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return DetectBytes(buffer[:n])
}

func DetectBytes(head []byte) (FileType, error) {
	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(head, signature) {
			return fileType, nil
		}
	}

	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		return FileTypeMP4, nil
	}
	if len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")) {
		return FileTypeWAV, nil
	}
	if bytes.HasPrefix(head, []byte("ID3")) {
		return FileTypeMP3, nil
	}
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		// MPEG audio frame sync without an ID3 tag
		return FileTypeMP3, nil
	}

	return "", ErrInvalidFileType
}

func IsImageType(fileType FileType) bool {
	switch fileType {
	case FileTypePNG, FileTypeJPEG, FileTypeGIF:
		return true
	default:
		return false
	}
}

func IsAudioType(fileType FileType) bool {
	switch fileType {
	case FileTypeWAV, FileTypeMP3, FileTypeOGG, FileTypeFLAC:
		return true
	default:
		return false
	}
}

func IsVideoType(fileType FileType) bool {
	switch fileType {
	case FileTypeMP4, FileTypeWEBM:
		return true
	default:
		return false
	}
}

// KindAccepts reports whether an input of the detected type can feed a
// task of the given kind. Archive and purge tasks take no upload at all.
func KindAccepts(kind models.TaskKind, fileType FileType) bool {
	switch kind {
	case models.KindTranscribe:
		return IsAudioType(fileType) || IsVideoType(fileType)
	case models.KindExtractAudio, models.KindGIF:
		return IsVideoType(fileType)
	case models.KindImage:
		return IsImageType(fileType)
	default:
		return false
	}
}
