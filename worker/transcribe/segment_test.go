package transcribe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mediaconv/worker/media"
)

func TestPlanSegments_SilenceSplitsSpeech(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Padding = 0

	silences := []media.Silence{
		{Start: 5, End: 7},
		{Start: 12, End: 13.5},
	}
	spans := PlanSegments(20, silences, opts)

	require.Equal(t, []Span{
		{Start: 0, End: 5},
		{Start: 7, End: 12},
		{Start: 13.5, End: 20},
	}, spans)
}

func TestPlanSegments_PaddingClampsToBounds(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Padding = 0.5

	silences := []media.Silence{{Start: 4, End: 6}}
	spans := PlanSegments(10, silences, opts)

	require.Len(t, spans, 2)
	require.Equal(t, 0.0, spans[0].Start)
	require.Equal(t, 4.5, spans[0].End)
	require.Equal(t, 5.5, spans[1].Start)
	require.Equal(t, 10.0, spans[1].End)
}

func TestPlanSegments_DropsTinySpans(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Padding = 0
	opts.MinSpan = 0.5

	silences := []media.Silence{
		{Start: 0.1, End: 9.8},
	}
	spans := PlanSegments(10, silences, opts)

	// 0-0.1 and 9.8-10 are too short to hold speech; the fallback kicks in
	// rather than returning nothing.
	for _, s := range spans {
		require.GreaterOrEqual(t, s.Duration(), opts.MinSpan)
	}
	require.NotEmpty(t, spans)
}

func TestPlanSegments_SplitsLongSpans(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Padding = 0
	opts.MaxSpan = 30

	spans := PlanSegments(100, []media.Silence{{Start: 95, End: 100}}, opts)

	for _, s := range spans {
		require.LessOrEqual(t, s.Duration(), opts.MaxSpan+1e-9)
	}
	// 95 seconds of speech in 30s chunks.
	require.Equal(t, 0.0, spans[0].Start)
	require.InDelta(t, 95, spans[len(spans)-1].End, 1e-9)
}

func TestPlanSegments_OpenEndedSilenceRunsToEnd(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Padding = 0

	silences := []media.Silence{{Start: 8, End: -1}}
	spans := PlanSegments(20, silences, opts)

	require.Equal(t, []Span{{Start: 0, End: 8}}, spans)
}

func TestPlanSegments_NoSilencesUsesFixedWindows(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.Window = 30

	spans := PlanSegments(75, nil, opts)

	require.Equal(t, []Span{
		{Start: 0, End: 30},
		{Start: 30, End: 60},
		{Start: 60, End: 75},
	}, spans)
}

func TestPlanSegments_SegmentationDisabled(t *testing.T) {
	opts := DefaultSegmentOptions()
	opts.SplitOnSilence = false
	opts.Window = 30

	silences := []media.Silence{{Start: 5, End: 7}}
	spans := PlanSegments(60, silences, opts)

	require.Equal(t, []Span{
		{Start: 0, End: 30},
		{Start: 30, End: 60},
	}, spans)
}

func TestPlanSegments_EmptyInput(t *testing.T) {
	require.Nil(t, PlanSegments(0, nil, DefaultSegmentOptions()))
}
