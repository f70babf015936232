package server

import "testing"

func TestBuildPaginationData(t *testing.T) {
	data := buildPaginationData("/x", 5, 10, 25)
	if data.Page != 3 || data.TotalPages != 3 || !data.HasPrev || data.HasNext || data.PrevPage != 2 {
		t.Fatalf("unexpected pagination %#v", data)
	}
	if data.PrevURL != "/x?page=2&per_page=10" || data.NextURL != "" {
		t.Fatalf("unexpected page urls %q %q", data.PrevURL, data.NextURL)
	}
	empty := buildPaginationData("/x", 1, 0, 0)
	if empty.TotalPages != 1 || empty.HasNext || empty.HasPrev {
		t.Fatalf("unexpected empty pagination %#v", empty)
	}
}

func TestValidateName(t *testing.T) {
	if got, err := validateName("  Ada   Lovelace "); err != nil || got != "Ada Lovelace" {
		t.Fatalf("expected normalized name, got %q %v", got, err)
	}
	if _, err := validateName("   "); err == nil {
		t.Fatal("expected empty name to fail")
	}
	if _, err := validateName("bad\u0007name"); err == nil {
		t.Fatal("expected control characters to fail")
	}
}
