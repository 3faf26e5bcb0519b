package traefik

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

// Log is a line logged by a simulation.
type Log struct {
	Message string `json:"message"`

	// The following fields are only set for JSON encoded lines.
	Timestamp string         `json:"timestamp,omitempty"`
	Level     string         `json:"level,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// ParseLogs parses the zerolog output of a simulation. Lines that are not JSON encoded
// zerolog events are kept verbatim as messages.
func ParseLogs(raw string) []Log {
	logs := make([]Log, 0, strings.Count(raw, "\n")+1)

	for line := range strings.Lines(raw) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			logs = append(logs, Log{Message: line})

			continue
		}

		rawLevel, _ := event[zerolog.LevelFieldName].(string)
		level, err := zerolog.ParseLevel(rawLevel)
		if err != nil || level == zerolog.NoLevel {
			logs = append(logs, Log{Message: line})

			continue
		}

		l := Log{
			Timestamp: stringField(event, zerolog.TimestampFieldName),
			Message:   stringField(event, zerolog.MessageFieldName),
			Error:     stringField(event, zerolog.ErrorFieldName),
			Level:     level.String(),
			Fields:    make(map[string]any),
		}

		for key, value := range event {
			switch key {
			case zerolog.LevelFieldName, zerolog.TimestampFieldName, zerolog.MessageFieldName, zerolog.ErrorFieldName:
			default:
				l.Fields[key] = value
			}
		}

		logs = append(logs, l)
	}

	return logs
}

func stringField(event map[string]any, key string) string {
	s, _ := event[key].(string)

	return s
}
