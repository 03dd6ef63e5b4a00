package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// payloadKeys hold the actual payload inside a response envelope.
var payloadKeys = []string{"data", "result", "list", "items"}

// envelopeMetaKeys may sit next to a payload key without making the object
// a payload itself.
var envelopeMetaKeys = map[string]bool{
	"success": true, "status": true, "message": true, "code": true,
	"timestamp": true, "total": true, "count": true, "page": true, "limit": true,
}

const maxEnvelopeDepth = 3

// Unwrap strips response envelopes such as {"success":true,"data":X} or
// {"result":{"list":X}} and returns X. An object only counts as an envelope
// when every key besides the payload key is envelope metadata, so domain
// objects that happen to carry a "data" field pass through untouched.
func Unwrap(raw []byte) []byte {
	return unwrap(raw, maxEnvelopeDepth)
}

func unwrap(raw []byte, maxDepth int) []byte {
	raw = bytes.TrimSpace(raw)
	for depth := 0; depth < maxDepth; depth++ {
		if len(raw) == 0 || raw[0] != '{' {
			return raw
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return raw
		}
		inner, ok := envelopePayload(obj)
		if !ok {
			return raw
		}
		raw = bytes.TrimSpace(inner)
	}
	return raw
}

func envelopePayload(obj map[string]json.RawMessage) (json.RawMessage, bool) {
	var found string
	for _, key := range payloadKeys {
		if v, ok := obj[key]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			found = key
			break
		}
	}
	if found == "" {
		return nil, false
	}
	for key := range obj {
		if key == found {
			continue
		}
		if !envelopeMetaKeys[key] && !contains(payloadKeys, key) {
			return nil, false
		}
	}
	return obj[found], true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Decode unwraps raw and unmarshals the canonical payload into out.
func Decode(raw []byte, out interface{}) error {
	payload := Unwrap(raw)
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

var ErrEmptyReply = errors.New("chat response carried no reply")

var replyKeys = []string{"output", "data", "message", "response", "reply", "text"}

// DecodeChatReply extracts the assistant reply from a chat response. The
// backend double-encodes it: the envelope's output/data/message field is
// itself a JSON string that has to be parsed again.
func DecodeChatReply(raw []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	reply, ok := extractReply(v, 0)
	if !ok || strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func extractReply(v interface{}, depth int) (string, bool) {
	if depth > 4 {
		return "", false
	}
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, `"`) {
			var inner interface{}
			if json.Unmarshal([]byte(trimmed), &inner) == nil {
				if reply, ok := extractReply(inner, depth+1); ok {
					return reply, true
				}
			}
		}
		return t, true
	case []interface{}:
		if len(t) == 0 {
			return "", false
		}
		return extractReply(t[0], depth+1)
	case map[string]interface{}:
		for _, key := range replyKeys {
			if field, ok := t[key]; ok && field != nil {
				if reply, ok := extractReply(field, depth+1); ok {
					return reply, true
				}
			}
		}
	}
	return "", false
}
