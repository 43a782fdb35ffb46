package formats

import (
	"encoding/json"
	"strings"
)

// TagUnknown marks lines no registry entry matched.
const TagUnknown = "unknown"

// TagJSON marks lines that parsed as a JSON object.
const TagJSON = "json"

// Classification is the classifier verdict for one line.
type Classification struct {
	// Tag is the registry entry name, TagJSON, or TagUnknown.
	Tag string

	// Captures holds the named regex captures for registry matches.
	// Optional groups that did not participate are absent.
	Captures map[string]string

	// JSONFields holds the parsed object for TagJSON lines.
	JSONFields map[string]any

	// Entry points at the matched registry entry, nil for JSON and unknown.
	Entry *Entry
}

// Classify decides which format a trimmed, non-empty line belongs to.
// A line starting with '{' that parses as a JSON object is tagged TagJSON;
// otherwise the registry is scanned in declared order and the first matching
// entry wins. Lines matching nothing are tagged TagUnknown.
func Classify(line string) Classification {
	if strings.HasPrefix(line, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(line), &fields); err == nil {
			return Classification{Tag: TagJSON, JSONFields: fields}
		}
	}

	for i := range Registry {
		entry := &Registry[i]
		match := entry.Pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		captures := make(map[string]string)
		for gi, name := range entry.Pattern.SubexpNames() {
			if name == "" || match[gi] == "" {
				continue
			}
			captures[name] = match[gi]
		}
		return Classification{Tag: entry.Name, Captures: captures, Entry: entry}
	}

	return Classification{Tag: TagUnknown}
}

// Level resolves the severity for this classification from the entry's
// level map, if any. Returns "" when the entry carries no level verdict.
func (c Classification) Level() string {
	if c.Entry == nil {
		return ""
	}
	if c.Entry.LevelMap != nil && c.Entry.LevelField != "" {
		if token, ok := c.Captures[c.Entry.LevelField]; ok {
			if level, ok := c.Entry.LevelMap[token]; ok {
				return level
			}
			return "INFO"
		}
	}
	if level, ok := c.Captures["level"]; ok {
		return strings.ToUpper(level)
	}
	return ""
}
