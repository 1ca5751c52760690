package tutoring

import (
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/store"
)

type TutorOption func(*Tutor)

// WithLocker replaces the in-process session lock, a shared lock is needed
// when more than one process serves the same sessions.
func WithLocker(locker store.Locker) TutorOption {
	return func(t *Tutor) { t.locker = locker }
}

func WithTranscriber(transcriber speechtotext.Transcriber) TutorOption {
	return func(t *Tutor) { t.transcriber = transcriber }
}

func WithAggregator(aggregator Aggregator) TutorOption {
	return func(t *Tutor) { t.aggregator = aggregator }
}

func WithRecorder(recorder Recorder) TutorOption {
	return func(t *Tutor) {
		if recorder != nil {
			t.recorder = recorder
		}
	}
}

// WithStreaming selects between streamed and whole generation, streamed is
// the default.
func WithStreaming(streaming bool) TutorOption {
	return func(t *Tutor) { t.streaming = streaming }
}

// WithRequestOptions are applied to every generation request.
func WithRequestOptions(opts ...llms.RequestOption) TutorOption {
	return func(t *Tutor) { t.requestOptions = append(t.requestOptions, opts...) }
}
