package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/logsieve/logsieve/internal/extract"
	"github.com/logsieve/logsieve/internal/formats"
	"github.com/logsieve/logsieve/internal/models"
)

// jsonReservedFields are consumed by the assembler and excluded from a JSON
// line's metadata.
var jsonReservedFields = map[string]bool{
	"message": true, "msg": true, "level": true, "severity": true,
	"timestamp": true, "time": true,
}

// structuredNetworkFields are captures lifted into NetworkInfo and excluded
// from a structured line's metadata.
var structuredNetworkFields = map[string]bool{
	"src_ip": true, "dst_ip": true, "src_port": true, "dst_port": true,
	"protocol": true, "remote_addr": true,
}

// Assembler turns one raw line into a LogRecord: format classification,
// field lifting, network extraction, severity resolution, and the future-skew
// clamp on event time. Template fields are filled later by the miner.
type Assembler struct {
	skew time.Duration
}

func NewAssembler(skew time.Duration) *Assembler {
	return &Assembler{skew: skew}
}

// ParseLine parses one line. Returns nil for blank lines; every non-blank
// line yields a record, degrading to an unknown-format record carrying the
// raw message.
func (a *Assembler) ParseLine(line, source string, now time.Time) *models.LogRecord {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	record := &models.LogRecord{
		Timestamp: now,
		Level:     models.LevelInfo,
		Message:   trimmed,
		Source:    source,
		LogType:   formats.TagUnknown,
	}

	classification := formats.Classify(trimmed)
	switch {
	case classification.Tag == formats.TagJSON:
		a.liftJSON(record, classification.JSONFields, trimmed)
	case classification.Tag != formats.TagUnknown:
		a.liftStructured(record, classification, now)
	}

	// Regex extraction on the final message augments whatever the structured
	// fields did not provide. Lists come from extraction only.
	extracted := extract.Network(record.Message)
	mergeNetwork(&record.Network, &extracted)

	// A format-level verdict wins; the keyword ladder only breaks the default.
	if record.Level == models.LevelInfo {
		record.Level = extract.Level(record.Message, models.LevelInfo)
	}

	if isDigits(record.Network.Protocol) {
		record.Network.Protocol = extract.ProtocolName(record.Network.Protocol)
	}

	a.clampFuture(record, now)
	return record
}

func (a *Assembler) liftJSON(record *models.LogRecord, fields map[string]any, line string) {
	record.LogType = formats.TagJSON
	record.ParsedFields = fields

	if msg, ok := stringField(fields, "message", "msg"); ok {
		record.Message = msg
	} else {
		record.Message = line
	}
	if level, ok := stringField(fields, "level", "severity"); ok {
		record.Level = strings.ToUpper(level)
	}
	if value, ok := stringField(fields, "timestamp", "time"); ok {
		if ts, ok := extract.ISOTimestamp(value); ok {
			record.Timestamp = ts
		}
	}

	if v, ok := stringField(fields, "src_ip"); ok {
		record.Network.SrcIP = v
	}
	if v, ok := stringField(fields, "dst_ip"); ok {
		record.Network.DstIP = v
	}
	if v, ok := stringField(fields, "ip_address"); ok {
		record.Network.IPAddress = v
	}
	if v, ok := stringField(fields, "protocol"); ok {
		record.Network.Protocol = v
	}
	if v, ok := scalarField(fields, "src_port"); ok {
		record.Network.SrcPort = v
	}
	if v, ok := scalarField(fields, "dst_port"); ok {
		record.Network.DstPort = v
	}

	metadata := make(map[string]any)
	for key, value := range fields {
		if !jsonReservedFields[key] {
			metadata[key] = value
		}
	}
	if len(metadata) > 0 {
		record.Metadata = metadata
	}
}

func (a *Assembler) liftStructured(record *models.LogRecord, c formats.Classification, now time.Time) {
	record.LogType = c.Tag

	parsed := make(map[string]any, len(c.Captures)+1)
	for key, value := range c.Captures {
		parsed[key] = value
	}
	parsed["log_type"] = c.Tag
	record.ParsedFields = parsed

	if msg, ok := c.Captures["message"]; ok {
		record.Message = msg
	}
	if level := c.Level(); level != "" {
		record.Level = level
	}
	if value, ok := c.Captures["timestamp"]; ok && c.Entry != nil {
		if ts, ok := extract.Timestamp(value, c.Entry.TimeLayout, now); ok {
			record.Timestamp = ts
		}
	}

	if v, ok := c.Captures["remote_addr"]; ok {
		record.Network.SrcIP = v
	}
	if v, ok := c.Captures["src_ip"]; ok {
		record.Network.SrcIP = v
	}
	if v, ok := c.Captures["dst_ip"]; ok {
		record.Network.DstIP = v
	}
	if v, ok := c.Captures["src_port"]; ok {
		record.Network.SrcPort = v
	}
	if v, ok := c.Captures["dst_port"]; ok {
		record.Network.DstPort = v
	}
	if v, ok := c.Captures["protocol"]; ok {
		record.Network.Protocol = v
	}

	metadata := make(map[string]any)
	for key, value := range c.Captures {
		if key == "message" || key == "level" || structuredNetworkFields[key] {
			continue
		}
		metadata[key] = value
	}
	if len(metadata) > 0 {
		record.Metadata = metadata
	}
}

// clampFuture pulls an event time beyond the skew bound back to the ingest
// instant, preserving the claimed time in metadata.
func (a *Assembler) clampFuture(record *models.LogRecord, now time.Time) {
	if a.skew <= 0 || !record.Timestamp.After(now.Add(a.skew)) {
		return
	}
	if record.Metadata == nil {
		record.Metadata = make(map[string]any)
	}
	record.Metadata["clamped_event_time"] = record.Timestamp.UTC().Format(time.RFC3339Nano)
	record.Timestamp = now
}

// mergeNetwork copies extracted entities into dst without overwriting scalar
// fields already set from structured captures.
func mergeNetwork(dst, src *models.NetworkInfo) {
	if dst.SrcIP == "" {
		dst.SrcIP = src.SrcIP
	}
	if dst.DstIP == "" {
		dst.DstIP = src.DstIP
	}
	if dst.IPAddress == "" {
		dst.IPAddress = src.IPAddress
	}
	dst.IPAddresses = src.IPAddresses
	dst.Ports = src.Ports
	dst.Protocols = src.Protocols
	dst.MACAddresses = src.MACAddresses
}

// stringField returns the first of the named fields that holds a string.
func stringField(fields map[string]any, names ...string) (string, bool) {
	for _, name := range names {
		if value, ok := fields[name].(string); ok {
			return value, true
		}
	}
	return "", false
}

// scalarField accepts strings and JSON numbers, normalizing to a string.
func scalarField(fields map[string]any, name string) (string, bool) {
	switch value := fields[name].(type) {
	case string:
		return value, true
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10), true
		}
		return fmt.Sprintf("%v", value), true
	default:
		return "", false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
