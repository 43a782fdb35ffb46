package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyJSONFastPath(t *testing.T) {
	c := Classify(`{"message": "ok", "level": "info"}`)
	assert.Equal(t, TagJSON, c.Tag)
	assert.Equal(t, "ok", c.JSONFields["message"])
	assert.Nil(t, c.Entry)
}

func TestClassifyMalformedJSONFallsThrough(t *testing.T) {
	c := Classify(`{not json at all`)
	assert.Equal(t, TagUnknown, c.Tag)
}

func TestClassifySyslog(t *testing.T) {
	c := Classify("Mar 10 13:45:01 server01 sshd[2541]: Failed password for root from 10.0.0.5 port 22 ssh2")
	require.Equal(t, "syslog", c.Tag)
	assert.Equal(t, "server01", c.Captures["hostname"])
	assert.Equal(t, "sshd", c.Captures["program"])
	assert.Equal(t, "2541", c.Captures["pid"])
	assert.Equal(t, "Failed password for root from 10.0.0.5 port 22 ssh2", c.Captures["message"])
	assert.Equal(t, "Jan 2 15:04:05", c.Entry.TimeLayout)
}

func TestClassifySyslogWithoutPID(t *testing.T) {
	c := Classify("Mar 10 13:45:01 server01 kernel: out of memory")
	require.Equal(t, "syslog", c.Tag)
	_, hasPID := c.Captures["pid"]
	assert.False(t, hasPID)
}

func TestClassifyCiscoBeforeSyslog(t *testing.T) {
	c := Classify("Mar 10 13:45:01 EST: %SEC-6-IPACCESSLOGP: list 102 denied tcp 10.1.1.1 -> 10.2.2.2")
	require.Equal(t, "cisco_syslog", c.Tag)
	assert.Equal(t, "SEC", c.Captures["facility"])
	assert.Equal(t, "6", c.Captures["severity"])
	assert.Equal(t, "IPACCESSLOGP", c.Captures["mnemonic"])
	assert.Equal(t, "INFO", c.Level())
}

func TestClassifyApacheAccess(t *testing.T) {
	c := Classify(`192.168.1.20 - frank [10/Oct/2023:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326 "http://ref.example/" "Mozilla/5.0"`)
	require.Equal(t, "apache_access", c.Tag)
	assert.Equal(t, "192.168.1.20", c.Captures["remote_addr"])
	assert.Equal(t, "GET", c.Captures["method"])
	assert.Equal(t, "200", c.Captures["status"])
}

func TestClassifyFirewall(t *testing.T) {
	c := Classify("kernel: IPTABLES DROP SRC=203.0.113.9 DST=10.1.1.1 SPT=51515 DPT=443 PROTO=TCP")
	require.Equal(t, "firewall", c.Tag)
	assert.Equal(t, "DROP", c.Captures["action"])
	assert.Equal(t, "203.0.113.9", c.Captures["src_ip"])
	assert.Equal(t, "WARN", c.Level())
}

func TestClassifyWindowsEvent(t *testing.T) {
	c := Classify("2024-03-10 13:45:01 Error 4625 Security An account failed to log on")
	require.Equal(t, "windows_event", c.Tag)
	assert.Equal(t, "4625", c.Captures["event_id"])
	assert.Equal(t, "ERROR", c.Level())
}

func TestClassifyDocker(t *testing.T) {
	c := Classify("2024-03-10T13:45:01.123456789Z info a1b2c3d4 container started")
	require.Equal(t, "docker", c.Tag)
	assert.Equal(t, "a1b2c3d4", c.Captures["container_id"])
	assert.Equal(t, "INFO", c.Level())
}

func TestClassifyUnknown(t *testing.T) {
	c := Classify("completely freeform line with no structure")
	assert.Equal(t, TagUnknown, c.Tag)
	assert.Empty(t, c.Level())
}

func TestLevelMapUnknownTokenDefaultsInfo(t *testing.T) {
	entry := Lookup("firewall")
	require.NotNil(t, entry)

	c := Classification{
		Tag:      "firewall",
		Entry:    entry,
		Captures: map[string]string{"action": "LOGGED"},
	}
	assert.Equal(t, "INFO", c.Level())
}

func TestLookup(t *testing.T) {
	assert.NotNil(t, Lookup("syslog"))
	assert.Nil(t, Lookup("no_such_format"))
}
