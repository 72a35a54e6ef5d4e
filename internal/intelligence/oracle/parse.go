package oracle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")

// extractObject decodes the first JSON object in content: the whole text if
// it is an object, otherwise the first fenced block that holds one.
func extractObject(content string) (map[string]json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New(errors.ErrCodeOracleMalformed, "oracle: empty content")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj, nil
	}
	for _, m := range fencePattern.FindAllStringSubmatch(content, -1) {
		var fenced map[string]json.RawMessage
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fenced); err == nil && fenced != nil {
			return fenced, nil
		}
	}
	return nil, errors.New(errors.ErrCodeOracleMalformed, "oracle: content is not a JSON object")
}

// reasoningOf returns the optional reasoning string, ignoring other types.
func reasoningOf(obj map[string]json.RawMessage) string {
	raw, ok := obj["reasoning"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
