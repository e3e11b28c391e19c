// Package email holds address normalization shared by checks, overrides and stores.
package email

import (
	"strings"
)

// Normalize trims surrounding whitespace and lowercases the whole address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Split separates an address at its last '@'. ok is false when either side is empty
// or no '@' is present; callers still receive whatever parts exist.
func Split(address string) (local, domain string, ok bool) {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return address, "", false
	}
	local, domain = address[:at], address[at+1:]
	return local, domain, local != "" && domain != ""
}

// Domain returns the domain part of an address, or "" when there is none.
func Domain(address string) string {
	_, domain, _ := Split(address)
	return domain
}

// MatchesEntry reports whether a normalized address matches a list entry.
// Entries are full addresses or bare domains; a bare domain (with or without
// a leading '@') matches any address ending in "@domain".
func MatchesEntry(address, entry string) bool {
	entry = Normalize(entry)
	if entry == "" {
		return false
	}
	if strings.HasPrefix(entry, "@") {
		return strings.HasSuffix(address, entry)
	}
	if strings.Contains(entry, "@") {
		return address == entry
	}
	return strings.HasSuffix(address, "@"+entry)
}
