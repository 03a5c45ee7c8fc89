package ident

import "testing"

func TestComponentSetSerialization(t *testing.T) {
	cases := []struct {
		set  ComponentSet
		want string
	}{
		{nil, ""},
		{ComponentSet{Run()}, ":run"},
		{ComponentSet{Build(), Run()}, ":{build,run}"},
	}
	for _, tc := range cases {
		if got := tc.set.String(); got != tc.want {
			t.Fatalf("String(%v): want %q got %q", tc.set, tc.want, got)
		}
	}
}

func TestComponentSetRoundTrip(t *testing.T) {
	for _, s := range []string{"", ":run", ":src", ":{build,run}"} {
		set, err := ParseComponentSet(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := set.String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestComponentDisplay(t *testing.T) {
	if Source().String() != "src" {
		t.Fatalf("expected Source to display as src")
	}
	named, err := Named("debug")
	if err != nil {
		t.Fatalf("Named: %v", err)
	}
	if named.String() != "debug" {
		t.Fatalf("expected named component to display its name")
	}
}

func TestNamedComponentRejectsInvalidSyntax(t *testing.T) {
	if _, err := Named("Not Valid!"); err == nil {
		t.Fatalf("expected error for invalid component name")
	}
}
