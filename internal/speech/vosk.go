package speech

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// VoskFactory creates recognizers backed by a vosk-server websocket
// endpoint (ws://host:2700). The server speaks newline-free JSON: partial
// results as {"partial": "..."} and completed segments as {"text": "..."}.
type VoskFactory struct {
	ServerURL  string
	SampleRate int
}

func NewVoskFactory(serverURL string) *VoskFactory {
	return &VoskFactory{ServerURL: serverURL, SampleRate: telephonySampleRate}
}

func (f *VoskFactory) NewRecognizer(ctx context.Context) (Recognizer, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("speech: dial vosk server %s: %w", f.ServerURL, err)
	}

	cfg := fmt.Sprintf(`{"config":{"sample_rate":%d}}`, f.SampleRate)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("speech: send vosk config: %w", err)
	}
	return &voskRecognizer{conn: conn}, nil
}

type voskRecognizer struct {
	conn *websocket.Conn
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func (r *voskRecognizer) AcceptFrame(frame []byte) (string, bool, error) {
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return "", false, fmt.Errorf("speech: send frame: %w", err)
	}
	_, msg, err := r.conn.ReadMessage()
	if err != nil {
		return "", false, fmt.Errorf("speech: read result: %w", err)
	}
	var res voskResult
	if err := json.Unmarshal(msg, &res); err != nil {
		return "", false, fmt.Errorf("speech: decode result: %w", err)
	}
	// A "text" field means the recognizer closed a segment; partials are
	// interim and not accumulated. Trailing space separates segments when
	// the bridge concatenates them.
	if res.Text != "" {
		return res.Text + " ", true, nil
	}
	return "", false, nil
}

func (r *voskRecognizer) FinalResult() (string, error) {
	if err := r.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof":1}`)); err != nil {
		return "", fmt.Errorf("speech: send eof: %w", err)
	}
	_, msg, err := r.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("speech: read final: %w", err)
	}
	var res voskResult
	if err := json.Unmarshal(msg, &res); err != nil {
		return "", fmt.Errorf("speech: decode final: %w", err)
	}
	return res.Text, nil
}

func (r *voskRecognizer) Close() error { return r.conn.Close() }
