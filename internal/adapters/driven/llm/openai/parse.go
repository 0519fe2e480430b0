package openai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls a JSON object or array out of a model reply. Models
// wrap structured output in markdown fences or prose often enough that a
// bare json.Unmarshal of the full reply is unreliable.
func extractJSON(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty model reply")
	}

	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		if idx := strings.LastIndex(reply, "```"); idx >= 0 {
			reply = reply[:idx]
		}
		reply = strings.TrimSpace(reply)
	}

	start := strings.IndexAny(reply, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in model reply")
	}
	var end int
	if reply[start] == '{' {
		end = strings.LastIndex(reply, "}")
	} else {
		end = strings.LastIndex(reply, "]")
	}
	if end <= start {
		return "", fmt.Errorf("unterminated JSON in model reply")
	}
	return reply[start : end+1], nil
}

// parseStringList decodes a JSON payload that is either a bare array of
// strings or an object with the named array field.
func parseStringList(payload, field string) ([]string, error) {
	payload = strings.TrimSpace(payload)

	if strings.HasPrefix(payload, "[") {
		var list []string
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil, fmt.Errorf("parse array: %w", err)
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil, fmt.Errorf("parse object: %w", err)
	}
	raw, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("missing %q field", field)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse %q field: %w", field, err)
	}
	return list, nil
}
