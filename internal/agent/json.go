package agent

import "encoding/json"

// toJSON renders v as compact JSON, falling back to an empty string if v
// is not serializable — this only backs tool-result-to-text rendering,
// never an API response path, so a lossy fallback is acceptable.
func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
