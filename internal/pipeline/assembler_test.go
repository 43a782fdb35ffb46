package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	return NewAssembler(5 * time.Minute)
}

func TestParseBlankLine(t *testing.T) {
	a := newTestAssembler()
	assert.Nil(t, a.ParseLine("", "test", testNow))
	assert.Nil(t, a.ParseLine("   \t  ", "test", testNow))
}

func TestParseSyslogAuthFailure(t *testing.T) {
	a := newTestAssembler()
	line := "Jul 10 12:00:01 host sshd[1234]: Failed password for root from 10.0.0.5 port 22 ssh2"

	record := a.ParseLine(line, "auth.log", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "syslog", record.LogType)
	assert.Equal(t, "ERROR", record.Level)
	assert.Equal(t, "Failed password for root from 10.0.0.5 port 22 ssh2", record.Message)
	assert.Equal(t, "10.0.0.5", record.Network.IPAddress)
	assert.Equal(t, []string{"22"}, record.Network.Ports)
	assert.Equal(t, []string{"SSH"}, record.Network.Protocols)
	assert.Equal(t, time.Date(2024, 7, 10, 12, 0, 1, 0, time.UTC), record.Timestamp)
	assert.Equal(t, "host", record.Metadata["hostname"])
	assert.Equal(t, "sshd", record.Metadata["program"])
}

func TestParseApacheAccess(t *testing.T) {
	a := newTestAssembler()
	line := `192.168.1.10 - - [10/Jul/2024:12:00:01 +0000] "GET /a HTTP/1.1" 200 512`

	record := a.ParseLine(line, "access.log", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "apache_access", record.LogType)
	assert.Equal(t, "192.168.1.10", record.Network.SrcIP)
	assert.Equal(t, "200", record.ParsedFields["status"])
	assert.Equal(t, time.Date(2024, 7, 10, 12, 0, 1, 0, time.UTC), record.Timestamp)
}

func TestParseJSONLine(t *testing.T) {
	a := newTestAssembler()
	line := `{"level":"error","message":"db down","src_ip":"10.1.1.1","timestamp":"2024-07-10T08:00:00Z","request_id":"abc"}`

	record := a.ParseLine(line, "app", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "json", record.LogType)
	assert.Equal(t, "ERROR", record.Level)
	assert.Equal(t, "db down", record.Message)
	assert.Equal(t, "10.1.1.1", record.Network.SrcIP)
	assert.Equal(t, time.Date(2024, 7, 10, 8, 0, 0, 0, time.UTC), record.Timestamp)

	// Consumed fields stay out of metadata, everything else goes in.
	assert.Equal(t, "abc", record.Metadata["request_id"])
	assert.NotContains(t, record.Metadata, "message")
	assert.NotContains(t, record.Metadata, "level")
	assert.NotContains(t, record.Metadata, "timestamp")
}

func TestParseJSONNumericPorts(t *testing.T) {
	a := newTestAssembler()
	line := `{"msg":"flow closed","severity":"info","src_port":51442,"dst_port":443,"protocol":"6"}`

	record := a.ParseLine(line, "app", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "flow closed", record.Message)
	assert.Equal(t, "51442", record.Network.SrcPort)
	assert.Equal(t, "443", record.Network.DstPort)
	// Numeric protocol identifiers map to names.
	assert.Equal(t, "TCP", record.Network.Protocol)
}

func TestParseFirewallLine(t *testing.T) {
	a := newTestAssembler()
	line := "kernel: DENY IN=eth0 OUT= SRC=1.2.3.4 DST=5.6.7.8 SPT=1000 DPT=22 PROTO=TCP"

	record := a.ParseLine(line, "fw", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "firewall", record.LogType)
	assert.Equal(t, "WARN", record.Level)
	assert.Equal(t, "1.2.3.4", record.Network.SrcIP)
	assert.Equal(t, "5.6.7.8", record.Network.DstIP)
	assert.Contains(t, record.Network.Protocols, "TCP")
	assert.Contains(t, record.Network.Ports, "1000")
	assert.Contains(t, record.Network.Ports, "22")
}

func TestParseCiscoSeverity(t *testing.T) {
	a := newTestAssembler()
	line := "Jul 10 12:00:01 UTC: %LINK-3-UPDOWN: Interface GigabitEthernet0/1, changed state to down"

	record := a.ParseLine(line, "switch", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "cisco_syslog", record.LogType)
	assert.Equal(t, "ERROR", record.Level)
}

func TestParseUnknownLine(t *testing.T) {
	a := newTestAssembler()
	record := a.ParseLine("something completely freeform happened", "misc", testNow)
	require.NotNil(t, record)

	assert.Equal(t, "unknown", record.LogType)
	assert.Equal(t, "INFO", record.Level)
	assert.Equal(t, "something completely freeform happened", record.Message)
	assert.True(t, record.Timestamp.Equal(testNow))
}

func TestFutureTimestampClamped(t *testing.T) {
	a := newTestAssembler()
	future := testNow.Add(48 * time.Hour).Format(time.RFC3339)
	line := `{"message":"from the future","timestamp":"` + future + `"}`

	record := a.ParseLine(line, "app", testNow)
	require.NotNil(t, record)

	assert.True(t, record.Timestamp.Equal(testNow))
	assert.Contains(t, record.Metadata, "clamped_event_time")
}

func TestTimestampWithinSkewKept(t *testing.T) {
	a := newTestAssembler()
	near := testNow.Add(2 * time.Minute)
	line := `{"message":"slightly ahead","timestamp":"` + near.Format(time.RFC3339) + `"}`

	record := a.ParseLine(line, "app", testNow)
	require.NotNil(t, record)

	assert.True(t, record.Timestamp.Equal(near))
	assert.NotContains(t, record.Metadata, "clamped_event_time")
}
