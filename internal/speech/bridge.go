package speech

import (
	"context"
	"log/slog"
	"strings"
)

// frameSize is the number of audio bytes pumped into the recognizer per
// step: 4000 16-bit samples.
const frameSize = 8000

// Bridge joins the telephony audio path to the text capabilities. Failures
// are logged and degrade to empty output; they never raise to the caller.
// Either adapter may be absent; the other direction keeps working.
type Bridge struct {
	tts Synthesizer
	stt RecognizerFactory
	log *slog.Logger
}

func NewBridge(tts Synthesizer, stt RecognizerFactory, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{tts: tts, stt: stt, log: log}
}

// CanSynthesize reports whether a text-to-speech adapter is configured.
func (b *Bridge) CanSynthesize() bool { return b != nil && b.tts != nil }

// CanTranscribe reports whether a speech-to-text adapter is configured.
func (b *Bridge) CanTranscribe() bool { return b != nil && b.stt != nil }

// Synthesize returns audio for the text, or empty bytes on failure.
func (b *Bridge) Synthesize(ctx context.Context, text string) []byte {
	if b.tts == nil {
		b.log.Warn("tts not configured")
		return nil
	}
	audio, err := b.tts.Synthesize(ctx, text)
	if err != nil {
		b.log.Error("tts failed", "err", err)
		return nil
	}
	return audio
}

// Transcribe pumps the audio through a fresh recognizer in fixed-size
// frames, accumulating each completed segment plus the final result.
// Returns the concatenation trimmed of surrounding whitespace; empty string
// on any failure. The recognizer is released on every path.
func (b *Bridge) Transcribe(ctx context.Context, audio []byte) string {
	if b.stt == nil {
		b.log.Warn("stt not configured")
		return ""
	}
	rec, err := b.stt.NewRecognizer(ctx)
	if err != nil {
		b.log.Error("stt recognizer init failed", "err", err)
		return ""
	}
	defer rec.Close()

	var out strings.Builder
	for off := 0; off < len(audio); off += frameSize {
		end := off + frameSize
		if end > len(audio) {
			end = len(audio)
		}
		text, done, err := rec.AcceptFrame(audio[off:end])
		if err != nil {
			b.log.Error("stt frame failed", "err", err)
			return ""
		}
		if done {
			out.WriteString(text)
		}
	}

	final, err := rec.FinalResult()
	if err != nil {
		b.log.Error("stt final result failed", "err", err)
		return ""
	}
	out.WriteString(final)
	return strings.TrimSpace(out.String())
}
