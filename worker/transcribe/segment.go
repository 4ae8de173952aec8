package transcribe

import "mediaconv/worker/media"

// Span is a speech region in absolute seconds from the start of the input.
type Span struct {
	Start float64
	End   float64
}

func (s Span) Duration() float64 { return s.End - s.Start }

type SegmentOptions struct {
	// SplitOnSilence gates silence-based segmentation; when off (or when no
	// silence was found) fixed windows are used instead.
	SplitOnSilence bool
	// Padding widens each speech span on both sides so words at the cut
	// points survive.
	Padding float64
	// MinSpan drops spans too short to hold speech.
	MinSpan float64
	// MaxSpan splits overly long spans so a single engine call stays bounded.
	MaxSpan float64
	// Window is the fixed-window length for the fallback path.
	Window float64
}

func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		SplitOnSilence: true,
		Padding:        0.25,
		MinSpan:        0.3,
		MaxSpan:        60,
		Window:         30,
	}
}

// PlanSegments converts silence intervals into the list of spans to
// transcribe. Silences partition the input; what remains between them is
// speech. Open-ended silences (End < 0) run to the end of input.
func PlanSegments(total float64, silences []media.Silence, opts SegmentOptions) []Span {
	if total <= 0 {
		return nil
	}

	if !opts.SplitOnSilence || len(silences) == 0 {
		return fixedWindows(total, opts.Window)
	}

	var spans []Span
	cursor := 0.0
	for _, s := range silences {
		if s.Start > cursor {
			spans = append(spans, Span{Start: cursor, End: s.Start})
		}
		if s.End < 0 {
			cursor = total
			break
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < total {
		spans = append(spans, Span{Start: cursor, End: total})
	}

	// Silence covered everything; transcribing nothing is never useful, so
	// fall back to fixed windows and let the engine decide.
	if len(spans) == 0 {
		return fixedWindows(total, opts.Window)
	}

	spans = pad(spans, opts.Padding, total)
	spans = dropShort(spans, opts.MinSpan)
	spans = splitLong(spans, opts.MaxSpan)

	if len(spans) == 0 {
		return fixedWindows(total, opts.Window)
	}
	return spans
}

func fixedWindows(total, window float64) []Span {
	if window <= 0 {
		window = 30
	}
	var spans []Span
	for start := 0.0; start < total; start += window {
		end := start + window
		if end > total {
			end = total
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

func pad(spans []Span, padding, total float64) []Span {
	if padding <= 0 {
		return spans
	}
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		s.Start -= padding
		s.End += padding
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > total {
			s.End = total
		}
		out = append(out, s)
	}
	return out
}

func dropShort(spans []Span, minSpan float64) []Span {
	if minSpan <= 0 {
		return spans
	}
	out := spans[:0]
	for _, s := range spans {
		if s.Duration() >= minSpan {
			out = append(out, s)
		}
	}
	return out
}

func splitLong(spans []Span, maxSpan float64) []Span {
	if maxSpan <= 0 {
		return spans
	}
	var out []Span
	for _, s := range spans {
		for s.Duration() > maxSpan {
			out = append(out, Span{Start: s.Start, End: s.Start + maxSpan})
			s.Start += maxSpan
		}
		out = append(out, s)
	}
	return out
}
