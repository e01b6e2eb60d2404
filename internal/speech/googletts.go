package speech

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// telephonySampleRate matches the carrier audio path (8 kHz PCM).
const telephonySampleRate = 8000

// GoogleTTS synthesizes speech with the Google Cloud Text-to-Speech API.
// Credentials come from the ambient Google application-default mechanism.
type GoogleTTS struct {
	client   *texttospeech.Client
	language string
	voice    string
}

func NewGoogleTTS(ctx context.Context, language, voice string) (*GoogleTTS, error) {
	if language == "" {
		language = "en-US"
	}
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech: tts client: %w", err)
	}
	return &GoogleTTS{client: client, language: language, voice: voice}, nil
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.language,
			Name:         g.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: telephonySampleRate,
		},
	}
	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	return resp.AudioContent, nil
}

func (g *GoogleTTS) Close() error { return g.client.Close() }
