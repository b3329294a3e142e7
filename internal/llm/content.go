package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ResultText renders a tool result for providers that only accept text.
// JSON strings are unquoted, anything else is passed through as JSON.
func ResultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ParseDataURL splits "data:<mediaType>;base64,<data>". ok is false for
// anything that is not a base64 data URL.
func ParseDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	header, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}
	return mediaType, data, true
}

// RawParams returns params, or an empty object when params is empty.
func RawParams(params json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return json.RawMessage(`{}`)
	}
	return params
}

// ValidParams is RawParams for params that may not be JSON at all, such as
// arguments cut off by a length limit. Invalid input comes back as a JSON
// string holding the raw text.
func ValidParams(params json.RawMessage) json.RawMessage {
	params = RawParams(params)
	if json.Valid(params) {
		return params
	}
	text, _ := json.Marshal(string(params))
	return text
}

// ObjectParams returns params when they hold a JSON object, and an empty
// object otherwise. Providers that require object-typed tool input replay
// calls through it.
func ObjectParams(params json.RawMessage) json.RawMessage {
	params = RawParams(params)
	if !json.Valid(params) || !bytes.HasPrefix(bytes.TrimSpace(params), []byte("{")) {
		return json.RawMessage(`{}`)
	}
	return params
}
