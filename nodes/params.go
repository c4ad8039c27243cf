package nodes

import "time"

// Parameter accessors. Parameters arrive as decoded JSON, so numbers
// are float64 and durations are strings like "5s".

func stringParam(parameters map[string]interface{}, key, fallback string) string {
	if v, ok := parameters[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolParam(parameters map[string]interface{}, key string, fallback bool) bool {
	if v, ok := parameters[key].(bool); ok {
		return v
	}
	return fallback
}

func intParam(parameters map[string]interface{}, key string, fallback int) int {
	switch v := parameters[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func floatParam(parameters map[string]interface{}, key string, fallback float64) float64 {
	switch v := parameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func durationParam(parameters map[string]interface{}, key string, fallback time.Duration) time.Duration {
	switch v := parameters[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

func mapParam(parameters map[string]interface{}, key string) map[string]interface{} {
	if v, ok := parameters[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func listParam(parameters map[string]interface{}, key string) []interface{} {
	if v, ok := parameters[key].([]interface{}); ok {
		return v
	}
	return nil
}

// mainInput returns the node's primary input as a map
func mainInput(inputs map[string]interface{}) map[string]interface{} {
	if m, ok := inputs["main"].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
