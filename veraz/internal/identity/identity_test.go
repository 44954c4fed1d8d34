package identity

import "testing"

func TestNormalizeText(t *testing.T) {
	// WHAT: Lowercasing and whitespace collapsing across messy inputs.
	// WHY: Canonical identity depends on byte-equal normalized text.
	cases := []struct {
		in, want string
	}{
		{"CeraVe", "cerave"},
		{"  Limpiador   Espumoso ", "limpiador espumoso"},
		{"La Roche-Posay", "la roche-posay"},
		{"VICHY\tMineral  89", "vichy mineral 89"},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	// WHAT: Size parsing handles units, decimal comma, and garbage.
	// WHY: Size is part of the canonical uniqueness tuple.
	cases := []struct {
		in    string
		value float64
		unit  string
		ok    bool
	}{
		{"473 ml", 473, "ml", true},
		{"473ml", 473, "ml", true},
		{"1,5 L", 1.5, "l", true},
		{"0.5 kg", 0.5, "kg", true},
		{"50 G", 50, "g", true},
		{"x30 un", 30, "un", true},
		{"sin tamaño", 0, "", false},
		{"", 0, "", false},
	}
	for _, c := range cases {
		value, unit := ParseSize(c.in)
		if c.ok {
			if value == nil {
				t.Errorf("ParseSize(%q): expected a value", c.in)
				continue
			}
			if *value != c.value || unit != c.unit {
				t.Errorf("ParseSize(%q) = (%v, %q), want (%v, %q)", c.in, *value, unit, c.value, c.unit)
			}
		} else if value != nil || unit != "" {
			t.Errorf("ParseSize(%q) = (%v, %q), want no match", c.in, value, unit)
		}
	}
}

func TestMakeKeyDeterminism(t *testing.T) {
	// WHAT: Case/whitespace variants of the same listing produce equal keys.
	// WHY: Two raw listings for the same product must share one canonical row.
	a := MakeKey("CeraVe", "Limpiador Espumoso", "473 ml")
	b := MakeKey(" cerave ", "LIMPIADOR   ESPUMOSO", "473ML")

	if a.Brand != b.Brand || a.Name != b.Name || a.SizeUnit != b.SizeUnit {
		t.Fatalf("keys differ: %+v vs %+v", a, b)
	}
	if a.SizeValue == nil || b.SizeValue == nil || *a.SizeValue != *b.SizeValue {
		t.Fatalf("size values differ: %v vs %v", a.SizeValue, b.SizeValue)
	}
}

func TestMakeKeyUnparseableSize(t *testing.T) {
	// WHAT: Unparseable size yields a nil size value, not an error.
	// WHY: Partial identity is an expected steady state for some categories.
	k := MakeKey("Vichy", "Mineral 89", "tamaño único")
	if k.SizeValue != nil || k.SizeUnit != "" {
		t.Errorf("expected nil size, got (%v, %q)", k.SizeValue, k.SizeUnit)
	}
}
