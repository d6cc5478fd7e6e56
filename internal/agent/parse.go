package agent

import (
	"strings"
)

// Call is one parsed REPL line.
type Call struct {
	Name ToolName
	Args []byte
}

// ParseCall reads "tool_name {json}". The argument object is optional and
// may start on the same line after any amount of whitespace.
func ParseCall(line string) (Call, error) {
	raw := strings.TrimSpace(line)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	if raw == "" {
		return Call{}, &ToolError{Code: ErrCodeEmptyInput, Message: "tool call is empty"}
	}

	name, rest := raw, ""
	if i := strings.IndexAny(raw, " \t{"); i >= 0 {
		name, rest = raw[:i], strings.TrimSpace(raw[i:])
	}
	name = strings.ToLower(name)
	if !knownTool(ToolName(name)) {
		return Call{}, &ToolError{Code: ErrCodeUnknownTool, Message: "unsupported tool: " + name}
	}
	if rest != "" && !strings.HasPrefix(rest, "{") {
		return Call{}, &ToolError{Code: ErrCodeInvalidArgument, Message: "arguments must be a JSON object"}
	}
	return Call{Name: ToolName(name), Args: []byte(rest)}, nil
}

func knownTool(name ToolName) bool {
	for _, t := range Tools() {
		if t.Name == name {
			return true
		}
	}
	return false
}
