package derive

import "strings"

// NormalizeAddress lower-cases an address so lookups are case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(address string) string {
	if address == "" {
		return "Unknown"
	}
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
