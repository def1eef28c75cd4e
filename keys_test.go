package depcache

import (
	"strings"
	"testing"
)

type keyerArg struct{ v string }

func (k keyerArg) CacheKey() string { return "custom:" + k.v }

type pkArg struct {
	PK   int
	Name string
}

type idArg struct {
	ID   string
	Name string
}

func TestArgCacheKeyPriority(t *testing.T) {
	cases := []struct {
		name string
		arg  any
		want string
	}{
		{"nil", nil, "<nil>"},
		{"keyer wins", keyerArg{v: "a"}, "custom:a"},
		{"pk field", pkArg{PK: 7, Name: "x"}, "pkArg::7"},
		{"id field", idArg{ID: "u-1", Name: "x"}, "idArg::u-1"},
		{"pointer to struct", &pkArg{PK: 9}, "pkArg::9"},
		{"plain int", 42, "42"},
		{"plain string", "hello", "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := argCacheKey(tc.arg); got != tc.want {
				t.Fatalf("argCacheKey(%v) = %q, want %q", tc.arg, got, tc.want)
			}
		})
	}
}

func TestIdentifierKeyNilPointer(t *testing.T) {
	var p *pkArg
	if _, ok := identifierKey(p); ok {
		t.Fatal("nil pointer must not yield an identifier key")
	}
}

func TestDeriveKeyStability(t *testing.T) {
	a := deriveKey("pkg.Fn", []string{"1", "2"})
	b := deriveKey("pkg.Fn", []string{"1", "2"})
	if a != b {
		t.Fatalf("same inputs produced different keys: %q vs %q", a, b)
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Fatalf("expected lowercase sha256 hex, got %q", a)
	}
	if c := deriveKey("pkg.Fn", []string{"1", "3"}); c == a {
		t.Fatal("different args must produce different keys")
	}
	if d := deriveKey("pkg.Other", []string{"1", "2"}); d == a {
		t.Fatal("different functions must produce different keys")
	}
}

func TestQualifiedNameOfFunc(t *testing.T) {
	name := qualifiedName(TestQualifiedNameOfFunc)
	if !strings.Contains(name, "depcache.TestQualifiedNameOfFunc") {
		t.Fatalf("unexpected qualified name %q", name)
	}
}
