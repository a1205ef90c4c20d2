package namespace

import "testing"

func TestPhysicalKey(t *testing.T) {
	tests := []struct {
		logical string
		profile string
		want    string
	}{
		{"accounts", "p1", "profile:p1:accounts"},
		{"autofill:home", "p1", "profile:p1:autofill:home"},
		{ProfilesKey, "p1", ProfilesKey},
		{CurrentProfileKey, "p1", CurrentProfileKey},
		{MetaKey("p2"), "p1", "vault:meta:p2"},
		{StatsKey("p2"), "p1", "vault:stats:p2"},
	}

	for _, tt := range tests {
		if got := PhysicalKey(tt.logical, tt.profile); got != tt.want {
			t.Errorf("PhysicalKey(%q, %q) = %q, want %q", tt.logical, tt.profile, got, tt.want)
		}
	}
}

func TestIsReserved(t *testing.T) {
	for _, k := range []string{ProfilesKey, CurrentProfileKey, "vault:meta:x", "vault:stats:x"} {
		if !IsReserved(k) {
			t.Errorf("%s should be reserved", k)
		}
	}
	for _, k := range []string{"accounts", "vault:other", "vault:profiles2", "profile:x:accounts"} {
		if IsReserved(k) {
			t.Errorf("%s should not be reserved", k)
		}
	}
}

func TestLogicalKey(t *testing.T) {
	logical, ok := LogicalKey("profile:p1:accounts", "p1")
	if !ok || logical != "accounts" {
		t.Errorf("LogicalKey = %q, %v", logical, ok)
	}
	if _, ok := LogicalKey("profile:p10:accounts", "p1"); ok {
		t.Error("Prefix of another profile must not match")
	}
}

func TestIsLegacy(t *testing.T) {
	if !IsLegacy("accounts") {
		t.Error("Bare key should be legacy")
	}
	if IsLegacy("profile:p1:accounts") {
		t.Error("Namespaced key is not legacy")
	}
	if IsLegacy(ProfilesKey) || IsLegacy("vault:meta:p1") {
		t.Error("Reserved keys are not legacy")
	}
}
