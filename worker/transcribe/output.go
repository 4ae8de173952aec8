package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type TranscriptSegment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text     string              `json:"text"`
	Language string              `json:"language"`
	Duration float64             `json:"duration"`
	Engine   string              `json:"engine,omitempty"`
	Segments []TranscriptSegment `json:"segments"`

	TXTPath  string `json:"-"`
	SRTPath  string `json:"-"`
	JSONPath string `json:"-"`
}

// Export writes the three output flavors next to each other: outBase.txt,
// outBase.srt, outBase.json.
func (t *Transcript) Export(outBase string) error {
	t.TXTPath = outBase + ".txt"
	t.SRTPath = outBase + ".srt"
	t.JSONPath = outBase + ".json"

	if err := os.WriteFile(t.TXTPath, []byte(t.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write txt: %w", err)
	}
	if err := os.WriteFile(t.SRTPath, []byte(FormatSRT(t.Segments)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := os.WriteFile(t.JSONPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// FormatSRT renders segments as SubRip cues, 1-indexed.
func FormatSRT(segments []TranscriptSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatSRTTimestamp(seg.Start),
			FormatSRTTimestamp(seg.End),
			seg.Text,
		)
	}
	return b.String()
}

// FormatSRTTimestamp renders seconds as the SubRip HH:MM:SS,mmm form.
func FormatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis -= h * 3600000
	m := millis / 60000
	millis -= m * 60000
	s := millis / 1000
	millis -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, millis)
}
