package profile_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stadtwache/opsclient/profile"
)

func officer(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.New(map[string]any{
		"id":           "u-17",
		"email":        "k.berger@stadtwache.sys",
		"username":     "K. Berger",
		"role":         "officer",
		"badge_number": "B-2207",
		"department":   "Streife Nord",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestProfile_Accessors(t *testing.T) {
	p := officer(t)

	if p.ID() != "u-17" {
		t.Errorf("ID() = %q, want %q", p.ID(), "u-17")
	}
	if p.Email() != "k.berger@stadtwache.sys" {
		t.Errorf("Email() = %q", p.Email())
	}
	if p.DisplayName() != "K. Berger" {
		t.Errorf("DisplayName() = %q, want %q", p.DisplayName(), "K. Berger")
	}
	if p.Role() != "officer" {
		t.Errorf("Role() = %q, want %q", p.Role(), "officer")
	}
}

func TestProfile_NumericID(t *testing.T) {
	p, err := profile.New(map[string]any{"id": 42})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.ID() != "42" {
		t.Errorf("ID() = %q, want %q", p.ID(), "42")
	}
}

func TestProfile_DisplayNameFallsBackToEmail(t *testing.T) {
	p, err := profile.New(map[string]any{"email": "leitstelle@stadtwache.sys"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.DisplayName() != "leitstelle@stadtwache.sys" {
		t.Errorf("DisplayName() = %q", p.DisplayName())
	}
}

func TestProfile_Merge_PreservesOtherFields(t *testing.T) {
	p := officer(t)

	merged, err := p.Merge(profile.Patch{"role": "admin", "rank": "Kommissar"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	want := map[string]any{
		"id":           "u-17",
		"email":        "k.berger@stadtwache.sys",
		"username":     "K. Berger",
		"role":         "admin",
		"badge_number": "B-2207",
		"department":   "Streife Nord",
		"rank":         "Kommissar",
	}
	if diff := cmp.Diff(want, merged.Fields()); diff != "" {
		t.Errorf("merged fields mismatch (-want +got):\n%s", diff)
	}

	if p.Role() != "officer" {
		t.Errorf("original profile mutated: role = %q", p.Role())
	}
}

func TestProfile_Merge_ZeroValue(t *testing.T) {
	var p profile.Profile

	merged, err := p.Merge(profile.Patch{"role": "admin"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if merged.Role() != "admin" {
		t.Errorf("Role() = %q, want admin", merged.Role())
	}
}

func TestProfile_Merge_InvalidValue(t *testing.T) {
	p := officer(t)

	_, err := p.Merge(profile.Patch{"bad": make(chan int)})
	if !errors.Is(err, profile.ErrInvalid) {
		t.Errorf("got error %v, want ErrInvalid", err)
	}
}

func TestProfile_JSON(t *testing.T) {
	p := officer(t)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded profile.Profile
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(p) {
		t.Errorf("decoded profile differs: %v vs %v", decoded.Fields(), p.Fields())
	}
}

func TestParse_RejectsNonObject(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"array", `[1,2]`},
		{"garbage", `not json`},
		{"string", `"x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := profile.Parse([]byte(tt.data)); !errors.Is(err, profile.ErrInvalid) {
				t.Errorf("Parse(%s) error = %v, want ErrInvalid", tt.data, err)
			}
		})
	}
}

func TestProfile_IsZero(t *testing.T) {
	var zero profile.Profile
	if !zero.IsZero() {
		t.Error("zero value IsZero() = false")
	}
	if officer(t).IsZero() {
		t.Error("populated profile IsZero() = true")
	}
	if !zero.Equal(profile.Profile{}) {
		t.Error("two zero profiles not Equal")
	}
}
