package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ExtractJSONObject pulls the first top-level JSON object out of a model
// reply that may be wrapped in prose or a markdown fence. Returns the raw
// slice between the first '{' and the last '}'.
func ExtractJSONObject(raw []byte) ([]byte, error) {
	s := string(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no json object in response")
	}
	return []byte(s[start : end+1]), nil
}

// SanitizeProposals repairs common shape drift in the model's field list
// before schema validation: confidence arriving as float or string,
// value arriving as number, unknown keys, out-of-range confidence.
// Returns the cleaned JSON plus a list of repairs for logging.
func SanitizeProposals(raw []byte, log *zap.Logger) ([]byte, []string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	repaired := make([]string, 0, 4)

	var (
		m     map[string]any
		items []any
	)
	if err := json.Unmarshal(raw, &m); err != nil {
		// Some replies put the array at the top level.
		var arr []any
		if arrErr := json.Unmarshal(raw, &arr); arrErr != nil {
			return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
		}
		items = arr
		repaired = append(repaired, "fields(top-level-array)")
	} else {
		var ok bool
		if items, ok = m["fields"].([]any); !ok {
			return nil, nil, fmt.Errorf("sanitize: missing fields array")
		}
	}

	allowed := map[string]struct{}{
		"field_id": {}, "found": {}, "value": {}, "confidence": {}, "issue": {},
	}

	out := make([]any, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			repaired = append(repaired, fmt.Sprintf("fields[%d](not-object)", i))
			continue
		}
		for k := range obj {
			if _, ok := allowed[k]; !ok {
				delete(obj, k)
				repaired = append(repaired, k+"(unknown)")
			}
		}
		switch v := obj["confidence"].(type) {
		case float64:
			obj["confidence"] = clampConfidence(int(v))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				obj["confidence"] = clampConfidence(n)
				repaired = append(repaired, "confidence(string)")
			} else {
				obj["confidence"] = 0
				repaired = append(repaired, "confidence(unparsable)")
			}
		case nil:
			obj["confidence"] = 0
			repaired = append(repaired, "confidence(null)")
		}
		switch v := obj["value"].(type) {
		case float64:
			obj["value"] = strconv.FormatFloat(v, 'f', -1, 64)
			repaired = append(repaired, "value(number)")
		case bool:
			obj["value"] = strconv.FormatBool(v)
			repaired = append(repaired, "value(bool)")
		case string:
			if s := strings.TrimSpace(v); s == "" {
				obj["value"] = nil
				repaired = append(repaired, "value(empty)")
			} else {
				obj["value"] = s
			}
		}
		if _, ok := obj["found"].(bool); !ok {
			obj["found"] = false
			repaired = append(repaired, "found(missing)")
		}
		out = append(out, obj)
	}

	b, err := json.Marshal(map[string]any{"fields": out})
	if err != nil {
		return nil, repaired, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(repaired) > 0 {
		log.Warn("analysis response sanitized", zap.Strings("repaired", repaired))
	}
	return b, repaired, nil
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
