package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactCredentials masks every secret on the record so it can be logged or
// returned to an admin view.
func RedactCredentials(credentials CommerceCredentials) CommerceCredentials {
	out := credentials
	out.ClientSecret = redactString(credentials.ClientSecret)
	out.AccessToken = redactString(credentials.AccessToken)
	out.RefreshToken = redactString(credentials.RefreshToken)
	out.ExpiresAt = cloneTime(credentials.ExpiresAt)
	return out
}

func RedactInstallation(installation Installation) Installation {
	out := installation
	out.BotToken = redactString(installation.BotToken)
	out.Scopes = append([]string(nil), installation.Scopes...)
	out.Metadata = RedactSensitiveMap(installation.Metadata)
	return out
}

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return RedactedValue
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, token := range []string{"password", "secret", "token", "authorization", "refresh", "credential", "signature"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "tenant_id", "team_id", "enterprise_id", "organization_slug", "idempotency_key", "request_id":
		return true
	default:
		return false
	}
}
