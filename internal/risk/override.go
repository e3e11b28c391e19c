package risk

import (
	"mailguard/internal/validation/models"
	"mailguard/pkg/email"
)

// ApplyOverrides appends whitelisted or blacklisted when address matches a list
// entry. Whitelist is checked first and wins. Only Signals changes; the input is
// not mutated.
func ApplyOverrides(results models.ValidationResults, address string, whitelist, blacklist []string) models.ValidationResults {
	address = email.Normalize(address)
	if matchesAny(address, whitelist) {
		return results.WithSignal(models.SignalWhitelisted)
	}
	if matchesAny(address, blacklist) {
		return results.WithSignal(models.SignalBlacklisted)
	}
	return results
}

func matchesAny(address string, entries []string) bool {
	for _, e := range entries {
		if email.MatchesEntry(address, e) {
			return true
		}
	}
	return false
}
