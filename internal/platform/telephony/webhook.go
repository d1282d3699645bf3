package telephony

import (
	"net/http"
	"strings"
)

// Webhook carries the fields the provider posts to call webhooks. CallSid
// identifies the call and doubles as the conversation session key.
type Webhook struct {
	CallSid      string
	CallStatus   string
	From         string
	To           string
	SpeechResult string
	Digits       string
}

// ParseWebhook extracts webhook fields from a provider POST. The provider
// sends application/x-www-form-urlencoded bodies; query parameters are also
// honored so action URLs can carry values through.
func ParseWebhook(r *http.Request) (Webhook, error) {
	if err := r.ParseForm(); err != nil {
		return Webhook{}, err
	}
	return Webhook{
		CallSid:      r.FormValue("CallSid"),
		CallStatus:   r.FormValue("CallStatus"),
		From:         r.FormValue("From"),
		To:           r.FormValue("To"),
		SpeechResult: strings.TrimSpace(r.FormValue("SpeechResult")),
		Digits:       r.FormValue("Digits"),
	}, nil
}
