package escrow

import (
	"errors"
	"testing"
)

const (
	mainAddr  Address = "0x00000000000000000000000000000000000000a1"
	otherAddr Address = "0x00000000000000000000000000000000000000b2"
)

func TestResolveRole(t *testing.T) {
	cases := []struct {
		name         string
		connected    Address
		mainEmployer Loadable[Address]
		authorized   Loadable[bool]
		want         Role
		wantErr      error
	}{
		{"no wallet", "", Known(mainAddr), Known(false), RoleUnknown, ErrNotConnected},
		{"main employer", mainAddr, Known(mainAddr), Known(false), RoleMainEmployer, nil},
		{"authorized employer", otherAddr, Known(mainAddr), Known(true), RoleAuthorizedEmployer, nil},
		{"recipient", otherAddr, Known(mainAddr), Known(false), RoleRecipient, nil},
		{"main employer read in flight", otherAddr, Loadable[Address]{}, Known(false), RoleUnknown, nil},
		{"authorization read in flight", otherAddr, Known(mainAddr), Loadable[bool]{}, RoleUnknown, nil},
		{"main match skips authorization wait", mainAddr, Known(mainAddr), Loadable[bool]{}, RoleMainEmployer, nil},
	}
	for _, tc := range cases {
		got, err := ResolveRole(tc.connected, tc.mainEmployer, tc.authorized)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("%s: role = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestResolveRoleCaseInsensitive(t *testing.T) {
	upper := Address("0x00000000000000000000000000000000000000A1")
	got, err := ResolveRole(upper, Known(mainAddr), Known(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != RoleMainEmployer {
		t.Fatalf("mixed-case identity resolved as %s, want main_employer", got)
	}
}

func TestRoleIsEmployer(t *testing.T) {
	if !RoleMainEmployer.IsEmployer() || !RoleAuthorizedEmployer.IsEmployer() {
		t.Fatal("employer roles must report IsEmployer")
	}
	if RoleRecipient.IsEmployer() || RoleUnknown.IsEmployer() {
		t.Fatal("recipient and unknown must not report IsEmployer")
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(" 0x00000000000000000000000000000000000000A1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != mainAddr {
		t.Fatalf("got %s, want canonical %s", got, mainAddr)
	}

	for _, bad := range []string{"", "0x123", "00000000000000000000000000000000000000a1", "0x0000000000000000000000000000000000000zzz"} {
		if _, err := ParseAddress(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseAddress(%q): err = %v, want ErrInvalidInput", bad, err)
		}
	}
}
