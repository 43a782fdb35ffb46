package formats

import "regexp"

// Entry describes one named line format: a regular expression with named
// captures, an optional timestamp layout for the "timestamp" capture, and an
// optional severity map keyed on one capture group.
type Entry struct {
	// Name is the format tag stored on matching records.
	Name string

	// Pattern is the line pattern. Most entries anchor on both ends; the
	// firewall entry matches as a substring because its fields are positional
	// within a larger wrapper line.
	Pattern *regexp.Regexp

	// TimeLayout is the Go reference layout for the "timestamp" capture.
	// Empty means the entry carries no parseable timestamp.
	TimeLayout string

	// LevelField names the capture group that the LevelMap keys on.
	LevelField string

	// LevelMap maps a captured token to a severity level.
	LevelMap map[string]string
}

// Registry is the static format catalog, evaluated in declared order by the
// classifier. Most-specific entries come first: cisco_syslog must precede
// syslog because cisco lines also satisfy the plain syslog shape.
// The catalog is immutable at runtime; add formats by appending an entry.
var Registry = []Entry{
	{
		Name:       "cisco_syslog",
		Pattern:    regexp.MustCompile(`^(?P<timestamp>\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{3})?)\s*(?P<timezone>\S+)?\s*:?\s*%?(?P<facility>\w+)-(?P<severity>\d+)-(?P<mnemonic>\w+):\s*(?P<message>.*)$`),
		LevelField: "severity",
		LevelMap: map[string]string{
			"0": "EMERGENCY", "1": "ALERT", "2": "CRITICAL", "3": "ERROR",
			"4": "WARN", "5": "NOTICE", "6": "INFO", "7": "DEBUG",
		},
	},
	{
		Name:       "syslog",
		Pattern:    regexp.MustCompile(`^(?P<timestamp>\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(?P<hostname>\S+)\s+(?P<program>\S+?)(?:\[(?P<pid>\d+)\])?:\s*(?P<message>.*)$`),
		TimeLayout: "Jan 2 15:04:05",
	},
	{
		Name:       "apache_access",
		Pattern:    regexp.MustCompile(`^(?P<remote_addr>\S+)\s+\S+\s+\S+\s+\[(?P<timestamp>[^\]]+)\]\s+"(?P<method>\S+)\s+(?P<url>\S+)\s+(?P<protocol>\S+)"\s+(?P<status>\d+)\s+(?P<size>\S+)(?:\s+"(?P<referer>[^"]*)")?\s*(?:"(?P<user_agent>[^"]*)")?`),
		TimeLayout: "02/Jan/2006:15:04:05 -0700",
	},
	{
		Name:       "nginx_access",
		Pattern:    regexp.MustCompile(`^(?P<remote_addr>\S+)\s+-\s+\S+\s+\[(?P<timestamp>[^\]]+)\]\s+"(?P<method>\S+)\s+(?P<url>\S+)\s+(?P<protocol>\S+)"\s+(?P<status>\d+)\s+(?P<size>\S+)\s+"(?P<referer>[^"]*)"\s+"(?P<user_agent>[^"]*)"`),
		TimeLayout: "02/Jan/2006:15:04:05 -0700",
	},
	{
		Name:       "firewall",
		Pattern:    regexp.MustCompile(`.*?(?P<action>ACCEPT|DENY|DROP|REJECT).*?SRC=(?P<src_ip>\d+\.\d+\.\d+\.\d+).*?DST=(?P<dst_ip>\d+\.\d+\.\d+\.\d+).*?(?:SPT=(?P<src_port>\d+))?.*?(?:DPT=(?P<dst_port>\d+))?.*?(?:PROTO=(?P<protocol>\w+))?`),
		LevelField: "action",
		LevelMap: map[string]string{
			"ACCEPT": "INFO", "DENY": "WARN", "DROP": "WARN", "REJECT": "ERROR",
		},
	},
	{
		Name:       "windows_event",
		Pattern:    regexp.MustCompile(`^(?P<timestamp>\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})\s+(?P<level>\w+)\s+(?P<event_id>\d+)\s+(?P<source>\S+)\s+(?P<message>.*)$`),
		TimeLayout: "2006-01-02 15:04:05",
	},
	{
		Name:       "docker",
		Pattern:    regexp.MustCompile(`^(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z)\s+(?P<level>\w+)\s+(?P<container_id>\w+)\s+(?P<message>.*)$`),
		TimeLayout: "2006-01-02T15:04:05.999999999Z",
	},
	{
		// JSON objects are normally consumed by the classifier's fast path;
		// this entry keeps the format addressable in the catalog.
		Name:    "json_structured",
		Pattern: regexp.MustCompile(`^\{.*\}$`),
	},
}

// Lookup returns the registry entry with the given name, or nil.
func Lookup(name string) *Entry {
	for i := range Registry {
		if Registry[i].Name == name {
			return &Registry[i]
		}
	}
	return nil
}
