package envelope

import "testing"

func TestExtractJSONPRoundTrip(t *testing.T) {
	json := `{"id":"default","plugins":{}}`
	wrapped := "updateCenter.post(" + json + ");"

	got, err := ExtractJSONP(wrapped)
	if err != nil {
		t.Fatalf("ExtractJSONP: %v", err)
	}
	if got != json {
		t.Fatalf("got %q, want %q", got, json)
	}
}

func TestExtractJSONPMissingMarkers(t *testing.T) {
	if _, err := ExtractJSONP("updateCenter.post();"); err == nil {
		t.Fatal("expected MalformedEnvelope for body with no braces")
	}
}

func TestExtractJSONPOutOfOrderMarkers(t *testing.T) {
	if _, err := ExtractJSONP("}bogus{"); err == nil {
		t.Fatal("expected MalformedEnvelope when '}' precedes '{'")
	}
}

func TestExtractPostMessageRoundTrip(t *testing.T) {
	json := `{"id":"default","plugins":{}}`
	wrapped := "<html><script>" + postMessagePreamble + json + postMessageSuffix + "</script></html>"

	got, err := ExtractPostMessage(wrapped)
	if err != nil {
		t.Fatalf("ExtractPostMessage: %v", err)
	}
	if got != json {
		t.Fatalf("got %q, want %q", got, json)
	}
}

func TestExtractPostMessageTrimsWhitespace(t *testing.T) {
	json := `{"id":"default"}`
	wrapped := postMessagePreamble + "  " + json + "  " + postMessageSuffix

	got, err := ExtractPostMessage(wrapped)
	if err != nil {
		t.Fatalf("ExtractPostMessage: %v", err)
	}
	if got != json {
		t.Fatalf("got %q, want %q", got, json)
	}
}

func TestExtractPostMessageMissingPreamble(t *testing.T) {
	if _, err := ExtractPostMessage("no envelope here"); err == nil {
		t.Fatal("expected MalformedEnvelope for missing preamble")
	}
}

func TestExtractPostMessageMissingSuffix(t *testing.T) {
	body := postMessagePreamble + `{"a":1}`
	if _, err := ExtractPostMessage(body); err == nil {
		t.Fatal("expected MalformedEnvelope for missing suffix")
	}
}
