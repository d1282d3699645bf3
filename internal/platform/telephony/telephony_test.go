package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestResponse_Render_SayHangup(t *testing.T) {
	out, err := NewResponse().
		Say("Take care and have a great day!").
		Hangup().
		Render()
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("expected XML declaration, got %q", out)
	}
	if !strings.Contains(out, `<Say voice="alice" language="en-US">Take care and have a great day!</Say>`) {
		t.Errorf("unexpected Say verb: %q", out)
	}
	if !strings.Contains(out, "<Hangup></Hangup>") {
		t.Errorf("expected Hangup verb: %q", out)
	}
	// Say must come before Hangup.
	if strings.Index(out, "<Say") > strings.Index(out, "<Hangup") {
		t.Error("verbs emitted out of order")
	}
}

func TestResponse_Render_GatherSpeech(t *testing.T) {
	out, err := NewResponse().
		GatherSpeech("/api/voice/process?patient_id=p1", "How are you doing?").
		Say("I didn't hear anything. Please call back when you're ready.").
		Hangup().
		Render()
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.Contains(out, `input="speech"`) {
		t.Errorf("expected speech input: %q", out)
	}
	if !strings.Contains(out, `action="/api/voice/process?patient_id=p1"`) {
		t.Errorf("expected action attribute: %q", out)
	}
	if !strings.Contains(out, `speechTimeout="auto"`) {
		t.Errorf("expected speechTimeout: %q", out)
	}
	if !strings.Contains(out, "How are you doing?") {
		t.Errorf("expected nested prompt: %q", out)
	}
	if !strings.Contains(out, "glucose") {
		t.Errorf("expected speech hints: %q", out)
	}
}

func TestParseWebhook(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "in-progress")
	form.Set("From", "+15550001111")
	form.Set("To", "+15550002222")
	form.Set("SpeechResult", "  my sugar was one eighty this morning ")

	req := httptest.NewRequest(http.MethodPost, "/api/voice/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	wh, err := ParseWebhook(req)
	if err != nil {
		t.Fatalf("ParseWebhook() error: %v", err)
	}
	if wh.CallSid != "CA123" {
		t.Errorf("expected CallSid CA123, got %s", wh.CallSid)
	}
	if wh.SpeechResult != "my sugar was one eighty this morning" {
		t.Errorf("expected trimmed speech, got %q", wh.SpeechResult)
	}
	if wh.From != "+15550001111" || wh.To != "+15550002222" {
		t.Errorf("unexpected numbers: %+v", wh)
	}
}

func TestClient_InitiateCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC1/Calls.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "secret" {
			t.Errorf("expected basic auth AC1/secret, got %s/%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("To"); got != "+15550001111" {
			t.Errorf("expected To, got %s", got)
		}
		if got := r.FormValue("From"); got != "+15550009999" {
			t.Errorf("expected From, got %s", got)
		}
		if got := r.FormValue("Url"); got != "https://example.com/api/voice/call" {
			t.Errorf("expected webhook URL, got %s", got)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Call{SID: "CA999", Status: "queued", To: "+15550001111", From: "+15550009999"})
	}))
	defer srv.Close()

	c := NewClient("AC1", "secret", "+15550009999")
	if c == nil {
		t.Fatal("expected configured client")
	}
	c.baseURL = srv.URL

	call, err := c.InitiateCall(context.Background(), "+15550001111", "https://example.com/api/voice/call")
	if err != nil {
		t.Fatalf("InitiateCall() error: %v", err)
	}
	if call.SID != "CA999" || call.Status != "queued" {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestClient_InitiateCall_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("AC1", "secret", "+15550009999")
	c.baseURL = srv.URL

	if _, err := c.InitiateCall(context.Background(), "bogus", "https://example.com/cb"); err == nil {
		t.Fatal("expected error for provider 400")
	}
}

func TestNewClient_IncompleteCredentials(t *testing.T) {
	if c := NewClient("", "secret", "+1555"); c != nil {
		t.Error("expected nil client without account sid")
	}
	if c := NewClient("AC1", "", "+1555"); c != nil {
		t.Error("expected nil client without auth token")
	}
	if c := NewClient("AC1", "secret", ""); c != nil {
		t.Error("expected nil client without from number")
	}
}
