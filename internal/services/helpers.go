package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toMap(value any) (map[string]any, bool) {
	out, ok := value.(map[string]any)
	return out, ok && out != nil
}

func asString(value any) (string, bool) {
	out, ok := value.(string)
	return out, ok
}

func asBool(value any) (bool, bool) {
	out, ok := value.(bool)
	return out, ok
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
