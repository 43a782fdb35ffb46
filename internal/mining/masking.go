package mining

import "regexp"

// Pre-masking rules applied to a message before it enters the parse tree.
// Order matters: specific classes before generic ones. IPs, ports, and short
// integers are deliberately not masked -- they must survive as literals so
// network log templates stay distinct.
var maskPatterns = []*regexp.Regexp{
	// UUIDs
	regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
	// long hex runs (digests, trace ids)
	regexp.MustCompile(`\b[a-fA-F0-9]{32,}\b`),
	// ISO timestamps with trailing Z
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z\b`),
	// large integers (sequence numbers, epoch millis)
	regexp.MustCompile(`\b\d{6,}\b`),
	// email addresses
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
}

// Mask replaces known noisy token classes with the wildcard marker.
func Mask(message, wildcard string) string {
	for _, pattern := range maskPatterns {
		message = pattern.ReplaceAllString(message, wildcard)
	}
	return message
}
