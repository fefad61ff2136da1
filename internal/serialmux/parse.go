package serialmux

import "strings"

const (
	LineTypeAck       = "ack"
	LineTypeError     = "error"
	LineTypeTelemetry = "telemetry"
	LineTypeUnknown   = "unknown"
)

// ClassifyLine inspects a line from the controller board and returns a
// coarse type token used for logging.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	switch {
	case lower == "ok" || strings.HasPrefix(lower, "ok "):
		return LineTypeAck
	case strings.HasPrefix(lower, "err"):
		return LineTypeError
	case strings.Contains(line, ":"):
		return LineTypeTelemetry
	}
	return LineTypeUnknown
}

// ParseTelemetry splits a "key:value;key:value" status line into fields.
// Empty segments and segments without a colon are skipped.
func ParseTelemetry(line string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(strings.TrimSpace(line), ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	return fields
}
