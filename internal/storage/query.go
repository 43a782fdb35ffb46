package storage

import (
	"strings"

	"github.com/logsieve/logsieve/internal/models"
)

// matchesFilter applies every filter constraint to one record. The index scan
// already narrowed by the most selective constraint; re-checking it here is
// harmless and keeps this function the single source of truth.
func matchesFilter(record *models.LogRecord, filter models.QueryFilter) bool {
	if filter.TemplateID != "" && record.TemplateID != filter.TemplateID {
		return false
	}
	if filter.FileID != "" && record.FileID != filter.FileID {
		return false
	}
	if filter.Level != "" && record.Level != filter.Level {
		return false
	}
	if filter.LogType != "" && record.LogType != filter.LogType {
		return false
	}
	if filter.StartTime != nil && record.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && record.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.Source != "" &&
		!strings.Contains(strings.ToLower(record.Source), strings.ToLower(filter.Source)) {
		return false
	}
	if filter.MessageContains != "" &&
		!strings.Contains(strings.ToLower(record.Message), strings.ToLower(filter.MessageContains)) {
		return false
	}
	// Only the true filter narrows; false and unset both pass everything.
	if filter.HasNetworkInfo != nil && *filter.HasNetworkInfo && record.Network.IsEmpty() {
		return false
	}
	if filter.Protocol != "" && !hasProtocol(&record.Network, filter.Protocol) {
		return false
	}
	if filter.IPAddress != "" && !hasIP(&record.Network, filter.IPAddress) {
		return false
	}
	return true
}

func hasProtocol(network *models.NetworkInfo, protocol string) bool {
	want := strings.ToUpper(protocol)
	if strings.ToUpper(network.Protocol) == want && network.Protocol != "" {
		return true
	}
	for _, p := range network.Protocols {
		if strings.ToUpper(p) == want {
			return true
		}
	}
	return false
}

func hasIP(network *models.NetworkInfo, ip string) bool {
	if network.SrcIP == ip || network.DstIP == ip || network.IPAddress == ip {
		return true
	}
	for _, addr := range network.IPAddresses {
		if addr == ip {
			return true
		}
	}
	return false
}
