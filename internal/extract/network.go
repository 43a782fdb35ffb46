package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/logsieve/logsieve/internal/models"
)

// The IP pattern accepts any 1-3 digit octets, so strings like
// 999.999.999.999 pass through. Extracted addresses are not validated.
var ipPattern = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

// Labeled port forms first, then the bare ":NNNN" suffix form. The separator
// is optional so "port 22" works alongside "SPT=1000".
var portPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bport\s*[=:]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(?:src_port|SPT)\s*[=:]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(?:dst_port|DPT)\s*[=:]?\s*(\d+)`),
	regexp.MustCompile(`(?i):(\d+)\b`),
}

// Bare protocol tokens anchor only on the left so versioned forms like
// "ssh2" still count. HTTPS precedes HTTP to win the longer match.
var protoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:proto|protocol)\s*[=:]\s*(\w+)`),
	regexp.MustCompile(`(?i)\b(TCP|UDP|ICMP|HTTPS|HTTP|FTP|SSH|SMTP|DNS|DHCP|SNMP)`),
}

var macPattern = regexp.MustCompile(`\b((?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2})\b`)

// protocolNumbers maps IANA protocol numbers to names, applied when a
// captured protocol field is purely digits.
var protocolNumbers = map[string]string{
	"1": "ICMP", "6": "TCP", "17": "UDP", "47": "GRE", "50": "ESP", "51": "AH",
	"58": "ICMPv6", "89": "OSPF", "132": "SCTP",
}

// ProtocolName resolves a numeric protocol identifier to its name.
// Non-numeric or unknown values are returned unchanged.
func ProtocolName(proto string) string {
	if name, ok := protocolNumbers[proto]; ok {
		return name
	}
	return proto
}

// Network extracts network entities from a log message: IPv4 addresses
// (the first two become src/dst, a lone one becomes ip_address), ports
// deduplicated in first-seen order and bounded to 1..65535, protocols
// uppercased and deduplicated, and MAC addresses.
func Network(message string) models.NetworkInfo {
	var info models.NetworkInfo

	ips := ipPattern.FindAllString(message, -1)
	if len(ips) > 0 {
		info.IPAddresses = ips
		if len(ips) >= 2 {
			info.SrcIP = ips[0]
			info.DstIP = ips[1]
		} else {
			info.IPAddress = ips[0]
		}
	}

	var ports []string
	for _, pattern := range portPatterns {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			port := match[1]
			if containsString(ports, port) {
				continue
			}
			n, err := strconv.Atoi(port)
			if err != nil || n < 1 || n > 65535 {
				continue
			}
			ports = append(ports, port)
		}
	}
	info.Ports = ports

	var protocols []string
	for _, pattern := range protoPatterns {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			proto := strings.ToUpper(match[1])
			if !containsString(protocols, proto) {
				protocols = append(protocols, proto)
			}
		}
	}
	info.Protocols = protocols

	if macs := macPattern.FindAllString(message, -1); len(macs) > 0 {
		info.MACAddresses = macs
	}

	return info
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
