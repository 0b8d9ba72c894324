package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// parseAssignments turns repeated "field=value" flags into a field map.
// "null" assigns an explicit SQL NULL; integer-looking values become ints so
// the order column round-trips as an integer.
func parseAssignments(assignments []string) (map[string]any, error) {
	fields := make(map[string]any, len(assignments))
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: want field=value", a)
		}
		fields[name] = parseValue(raw)
	}
	return fields, nil
}

func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
