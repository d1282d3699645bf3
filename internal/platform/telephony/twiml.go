// Package telephony integrates with a Twilio-compatible voice provider.
// It builds TwiML documents for call control, parses provider webhooks,
// and initiates outbound calls through the provider REST API.
package telephony

import (
	"encoding/xml"
)

// Response is the root TwiML document returned to the provider. Verbs are
// executed in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects speech input and posts the transcription to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Hints         string   `xml:"hints,attr,omitempty"`
	Say           *Say     `xml:"Say,omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

const (
	defaultVoice    = "alice"
	defaultLanguage = "en-US"
)

// speechHints biases the provider's speech recognition toward the vocabulary
// of a diabetes check-in call.
const speechHints = "good, bad, fine, okay, great, blood sugar, glucose, medication, medicine, taken, not taken, yes, no, thank you, goodbye, bye"

// NewResponse creates an empty TwiML response.
func NewResponse() *Response {
	return &Response{}
}

// Say appends a Say verb with the default voice.
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Voice: defaultVoice, Language: defaultLanguage, Text: text})
	return r
}

// GatherSpeech appends a Gather verb that speaks prompt and posts the
// caller's transcribed speech to action.
func (r *Response) GatherSpeech(action, prompt string) *Response {
	g := Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		SpeechTimeout: "auto",
		Language:      defaultLanguage,
		Hints:         speechHints,
	}
	if prompt != "" {
		g.Say = &Say{Voice: defaultVoice, Language: defaultLanguage, Text: prompt}
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// MarshalXML emits the verbs in insertion order under the Response element.
func (r *Response) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "Response"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, v := range r.Verbs {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Render serializes the response as a TwiML document with XML declaration.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", err
	}
	return xml.Header + string(body), nil
}
