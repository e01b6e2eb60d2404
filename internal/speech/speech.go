// Package speech converts between call audio and text. The bridge itself is
// stateless per call; recognizers are created and torn down per transcription.
package speech

import "context"

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Recognizer consumes audio frames and yields recognized text. One
// recognizer serves one transcription and must be closed afterwards.
type Recognizer interface {
	// AcceptFrame feeds one frame. When the recognizer completes a speech
	// segment it returns its text with done=true; otherwise done is false.
	AcceptFrame(frame []byte) (text string, done bool, err error)

	// FinalResult flushes the recognizer and returns any trailing text.
	FinalResult() (string, error)

	Close() error
}

// RecognizerFactory creates a fresh recognizer per transcription.
type RecognizerFactory interface {
	NewRecognizer(ctx context.Context) (Recognizer, error)
}
