// Package namespace maps logical storage keys to physical KV keys.
//
// Profile-scoped keys are stored as "profile:<id>:<logical>". A small closed
// set of reserved keys is stored verbatim and never encrypted, so profile
// selection and statistics can be rendered before any unlock. This file is
// the single place that decides which side of that boundary a key is on.
package namespace

import "strings"

const (
	// ProfilesKey holds the JSON profile registry
	ProfilesKey = "vault:profiles"
	// CurrentProfileKey holds the JSON id of the selected profile
	CurrentProfileKey = "vault:current-profile"
	// MetaPrefix + profile id holds that profile's VaultMeta
	MetaPrefix = "vault:meta:"
	// StatsPrefix + profile id holds that profile's usage counters
	StatsPrefix = "vault:stats:"

	profilePrefix = "profile:"
)

// reserved lists exact-match reserved keys
var reserved = map[string]struct{}{
	ProfilesKey:       {},
	CurrentProfileKey: {},
}

// reservedPrefixes lists per-profile reserved key families
var reservedPrefixes = []string{MetaPrefix, StatsPrefix}

// IsReserved reports whether logical is a global, unencrypted key
func IsReserved(logical string) bool {
	if _, ok := reserved[logical]; ok {
		return true
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(logical, p) {
			return true
		}
	}
	return false
}

// PhysicalKey resolves a logical key for the given profile
func PhysicalKey(logical, profileID string) string {
	if IsReserved(logical) {
		return logical
	}
	return ProfilePrefix(profileID) + logical
}

// ProfilePrefix is the physical prefix shared by all of a profile's rows
func ProfilePrefix(profileID string) string {
	return profilePrefix + profileID + ":"
}

// LogicalKey strips the profile prefix from a physical key. ok is false
// when physical does not belong to profileID.
func LogicalKey(physical, profileID string) (string, bool) {
	return strings.CutPrefix(physical, ProfilePrefix(profileID))
}

// MetaKey is the reserved key of a profile's VaultMeta
func MetaKey(profileID string) string {
	return MetaPrefix + profileID
}

// StatsKey is the reserved key of a profile's usage counters
func StatsKey(profileID string) string {
	return StatsPrefix + profileID
}

// IsLegacy reports whether a physical key predates profiles: it is neither
// reserved nor namespaced.
func IsLegacy(physical string) bool {
	return !IsReserved(physical) && !strings.HasPrefix(physical, profilePrefix)
}
