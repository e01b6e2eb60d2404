package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML builder for the conversational call loop. It intentionally
// avoids the provider SDK; only the verbs the dialer needs are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name  `xml:"Gather"`
	Input         string    `xml:"input,attr"`
	Action        string    `xml:"action,attr"`
	Method        string    `xml:"method,attr"`
	SpeechTimeout string    `xml:"speechTimeout,attr,omitempty"`
	Say           *twimlSay `xml:"Say,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderConverse speaks the assistant's line, then gathers the callee's
// speech and posts it to actionURL.
func RenderConverse(sayText, actionURL string) (string, error) {
	if strings.TrimSpace(actionURL) == "" {
		return "", errors.New("telephony: action url required for gather")
	}
	r := twimlResponse{Verbs: []any{
		twimlGather{
			Input:         "speech",
			Action:        actionURL,
			Method:        "POST",
			SpeechTimeout: "auto",
			Say:           &twimlSay{Text: sayText},
		},
	}}
	return renderTwiML(r)
}

// RenderGoodbye speaks a final line and hangs up.
func RenderGoodbye(sayText string) (string, error) {
	r := twimlResponse{Verbs: []any{
		twimlSay{Text: sayText},
		twimlHangup{},
	}}
	return renderTwiML(r)
}

// RenderHangup hangs up without speaking.
func RenderHangup() (string, error) {
	return renderTwiML(twimlResponse{Verbs: []any{twimlHangup{}}})
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
