package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"mediaconv/api/models"
)

func TestDetectBytes(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want FileType
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, FileTypePNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FileTypeJPEG},
		{"gif", []byte("GIF89a"), FileTypeGIF},
		{"pdf", []byte("%PDF-1.7"), FileTypePDF},
		{"ogg", []byte("OggS\x00\x02"), FileTypeOGG},
		{"flac", []byte("fLaC\x00\x00"), FileTypeFLAC},
		{"zip", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, FileTypeZIP},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, FileTypeWEBM},
		{"mp3 id3", []byte("ID3\x04\x00"), FileTypeMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FileTypeMP3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectBytes(tc.head)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDetectBytes_OffsetSignatures(t *testing.T) {
	mp4 := append([]byte{0x00, 0x00, 0x00, 0x20}, []byte("ftypisom....")...)
	got, err := DetectBytes(mp4)
	require.NoError(t, err)
	require.Equal(t, FileTypeMP4, got)

	wav := append([]byte("RIFF"), 0x24, 0x08, 0x00, 0x00)
	wav = append(wav, []byte("WAVEfmt ")...)
	got, err = DetectBytes(wav)
	require.NoError(t, err)
	require.Equal(t, FileTypeWAV, got)
}

func TestDetectBytes_Unknown(t *testing.T) {
	_, err := DetectBytes([]byte("definitely not media"))
	require.ErrorIs(t, err, ErrInvalidFileType)
}

func TestDetectFileType_SeeksBack(t *testing.T) {
	head := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x01, 0x02}
	r := bytes.NewReader(head)

	got, err := DetectFileType(r)
	require.NoError(t, err)
	require.Equal(t, FileTypePNG, got)

	// The reader must be rewound so the upload can be saved afterwards.
	pos, err := r.Seek(0, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)
}

func TestKindAccepts(t *testing.T) {
	require.True(t, KindAccepts(models.KindTranscribe, FileTypeWAV))
	require.True(t, KindAccepts(models.KindTranscribe, FileTypeMP4))
	require.False(t, KindAccepts(models.KindTranscribe, FileTypePNG))

	require.True(t, KindAccepts(models.KindGIF, FileTypeMP4))
	require.False(t, KindAccepts(models.KindGIF, FileTypeGIF))

	require.True(t, KindAccepts(models.KindImage, FileTypeJPEG))
	require.False(t, KindAccepts(models.KindImage, FileTypeMP3))

	// Archive and purge tasks take no upload.
	require.False(t, KindAccepts(models.KindArchive, FileTypeZIP))
	require.False(t, KindAccepts(models.KindPurge, FileTypeWAV))
}
