// Package envelope strips the two historical wrappers update sites serve
// their JSON catalogs in (spec §4.2, §6): a JSONP callback invocation, and
// an HTML page that delivers the payload via window.parent.postMessage.
package envelope

import "strings"

const (
	postMessagePreamble = "window.parent.postMessage(JSON.stringify("
	postMessageSuffix   = "),'*');"
)

// MalformedEnvelope reports that the expected wrapper markers were missing
// or out of order.
type MalformedEnvelope struct {
	Kind string // "jsonp" or "postMessage"
}

func (e *MalformedEnvelope) Error() string {
	return e.Kind + " envelope is malformed or missing its markers"
}

// ExtractJSONP returns the substring from the first '{' to the last '}'
// inclusive, per spec §4.2/§6.
func ExtractJSONP(body string) (string, error) {
	first := strings.IndexByte(body, '{')
	last := strings.LastIndexByte(body, '}')
	if first < 0 || last < 0 || last < first {
		return "", &MalformedEnvelope{Kind: "jsonp"}
	}
	return body[first : last+1], nil
}

// ExtractPostMessage locates the literal preamble
// "window.parent.postMessage(JSON.stringify(" and the literal suffix
// "),'*');" and returns the trimmed substring between them.
func ExtractPostMessage(body string) (string, error) {
	start := strings.Index(body, postMessagePreamble)
	if start < 0 {
		return "", &MalformedEnvelope{Kind: "postMessage"}
	}
	start += len(postMessagePreamble)

	end := strings.Index(body[start:], postMessageSuffix)
	if end < 0 {
		return "", &MalformedEnvelope{Kind: "postMessage"}
	}

	return strings.TrimSpace(body[start : start+end]), nil
}
