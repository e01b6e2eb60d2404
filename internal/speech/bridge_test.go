package speech

import (
	"context"
	"errors"
	"testing"
)

type stubSynth struct {
	audio []byte
	err   error
}

func (s stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.audio, s.err
}

type scriptedRecognizer struct {
	segments []string // text returned per completed frame, "" = no segment
	final    string
	frameErr error
	finalErr error

	frames int
	closed bool
}

func (r *scriptedRecognizer) AcceptFrame(frame []byte) (string, bool, error) {
	if r.frameErr != nil {
		return "", false, r.frameErr
	}
	i := r.frames
	r.frames++
	if i < len(r.segments) && r.segments[i] != "" {
		return r.segments[i], true, nil
	}
	return "", false, nil
}

func (r *scriptedRecognizer) FinalResult() (string, error) { return r.final, r.finalErr }
func (r *scriptedRecognizer) Close() error                 { r.closed = true; return nil }

type stubFactory struct {
	rec *scriptedRecognizer
	err error
}

func (f *stubFactory) NewRecognizer(ctx context.Context) (Recognizer, error) {
	return f.rec, f.err
}

func TestSynthesize_EmptyOnFailure(t *testing.T) {
	b := NewBridge(stubSynth{err: errors.New("tts down")}, nil, nil)
	if audio := b.Synthesize(context.Background(), "hello"); len(audio) != 0 {
		t.Fatalf("expected empty audio on failure")
	}

	b = NewBridge(stubSynth{audio: []byte{1, 2, 3}}, nil, nil)
	if audio := b.Synthesize(context.Background(), "hello"); len(audio) != 3 {
		t.Fatalf("expected audio passthrough, got %d bytes", len(audio))
	}
}

func TestTranscribe_AccumulatesSegmentsAndFinal(t *testing.T) {
	rec := &scriptedRecognizer{
		segments: []string{"hello ", "", "world "},
		final:    "goodbye",
	}
	b := NewBridge(nil, &stubFactory{rec: rec}, nil)

	// Three full frames of audio.
	audio := make([]byte, frameSize*3)
	got := b.Transcribe(context.Background(), audio)
	if got != "hello world goodbye" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if rec.frames != 3 {
		t.Fatalf("expected 3 frames, got %d", rec.frames)
	}
	if !rec.closed {
		t.Fatalf("recognizer not closed")
	}
}

func TestTranscribe_PartialLastFrame(t *testing.T) {
	rec := &scriptedRecognizer{final: "tail"}
	b := NewBridge(nil, &stubFactory{rec: rec}, nil)

	audio := make([]byte, frameSize+100)
	if got := b.Transcribe(context.Background(), audio); got != "tail" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if rec.frames != 2 {
		t.Fatalf("expected 2 frames (one partial), got %d", rec.frames)
	}
}

func TestTranscribe_EmptyOnFrameError(t *testing.T) {
	rec := &scriptedRecognizer{frameErr: errors.New("socket closed")}
	b := NewBridge(nil, &stubFactory{rec: rec}, nil)

	if got := b.Transcribe(context.Background(), make([]byte, frameSize)); got != "" {
		t.Fatalf("expected empty transcript on error, got %q", got)
	}
	if !rec.closed {
		t.Fatalf("recognizer leaked on failure path")
	}
}

func TestBridge_OneSidedAdapters(t *testing.T) {
	sttOnly := NewBridge(nil, &stubFactory{rec: &scriptedRecognizer{final: "hi"}}, nil)
	if sttOnly.CanSynthesize() {
		t.Fatalf("bridge without tts reports CanSynthesize")
	}
	if !sttOnly.CanTranscribe() {
		t.Fatalf("bridge with stt does not report CanTranscribe")
	}
	if audio := sttOnly.Synthesize(context.Background(), "hello"); len(audio) != 0 {
		t.Fatalf("expected empty audio without tts adapter")
	}
	if got := sttOnly.Transcribe(context.Background(), make([]byte, frameSize)); got != "hi" {
		t.Fatalf("transcription broken by missing tts adapter: %q", got)
	}

	ttsOnly := NewBridge(stubSynth{audio: []byte{1}}, nil, nil)
	if ttsOnly.CanTranscribe() {
		t.Fatalf("bridge without stt reports CanTranscribe")
	}
	if got := ttsOnly.Transcribe(context.Background(), make([]byte, frameSize)); got != "" {
		t.Fatalf("expected empty transcript without stt adapter, got %q", got)
	}
	if audio := ttsOnly.Synthesize(context.Background(), "hello"); len(audio) != 1 {
		t.Fatalf("synthesis broken by missing stt adapter")
	}

	var none *Bridge
	if none.CanSynthesize() || none.CanTranscribe() {
		t.Fatalf("nil bridge reports a capability")
	}
}

func TestTranscribe_EmptyOnFactoryError(t *testing.T) {
	b := NewBridge(nil, &stubFactory{err: errors.New("refused")}, nil)
	if got := b.Transcribe(context.Background(), make([]byte, frameSize)); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}
