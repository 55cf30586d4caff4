package usecase

import (
	"reflect"
	"testing"
)

func TestNormalizeLocationCityStatePair(t *testing.T) {
	loc := normalizeLocation("St. Louis, MO")

	if loc.State != "MO" {
		t.Fatalf("expected state MO, got %q", loc.State)
	}
	if loc.Region != "Saint Louis, MO" {
		t.Fatalf("expected region Saint Louis, MO, got %q", loc.Region)
	}
	wantStates := []string{"MO", "Missouri", "MISSOURI"}
	if !reflect.DeepEqual(loc.StateVariants, wantStates) {
		t.Fatalf("expected state variants %v, got %v", wantStates, loc.StateVariants)
	}
}

func TestNormalizeLocationSaintVariantsBothForms(t *testing.T) {
	for _, input := range []string{"Saint Louis", "St. Louis", "St Louis", "SAINT LOUIS"} {
		loc := normalizeLocation(input)
		for _, want := range []string{"ST. LOUIS", "SAINT LOUIS", "ST LOUIS", "SAINTLOUIS"} {
			if !containsVariant(loc.CityVariants, want) {
				t.Fatalf("input %q: expected variant %q in %v", input, want, loc.CityVariants)
			}
		}
	}
}

func TestNormalizeLocationFortAndMountAbbreviations(t *testing.T) {
	fort := normalizeLocation("Ft Worth, TX")
	for _, want := range []string{"FT WORTH", "FORT WORTH", "FT. WORTH"} {
		if !containsVariant(fort.CityVariants, want) {
			t.Fatalf("expected variant %q in %v", want, fort.CityVariants)
		}
	}

	mount := normalizeLocation("Mount Vernon, NY")
	for _, want := range []string{"MOUNT VERNON", "MT. VERNON", "MT VERNON"} {
		if !containsVariant(mount.CityVariants, want) {
			t.Fatalf("expected variant %q in %v", want, mount.CityVariants)
		}
	}
}

func TestNormalizeLocationCompoundSpacing(t *testing.T) {
	loc := normalizeLocation("New York, NY")
	for _, want := range []string{"NEW YORK", "NEWYORK", "NYC"} {
		if !containsVariant(loc.CityVariants, want) {
			t.Fatalf("expected variant %q in %v", want, loc.CityVariants)
		}
	}
}

func TestNormalizeLocationMetroAliasResolvesState(t *testing.T) {
	loc := normalizeLocation("STL")

	if loc.State != "MO" {
		t.Fatalf("expected alias to resolve state MO, got %q", loc.State)
	}
	if loc.City != "Saint Louis" {
		t.Fatalf("expected canonical city Saint Louis, got %q", loc.City)
	}
	if !containsVariant(loc.CityVariants, "ST. LOUIS") {
		t.Fatalf("expected ST. LOUIS variant, got %v", loc.CityVariants)
	}
}

func TestNormalizeLocationBareState(t *testing.T) {
	byName := normalizeLocation("Missouri")
	if byName.State != "MO" || byName.City != "" {
		t.Fatalf("expected bare state MO, got city=%q state=%q", byName.City, byName.State)
	}
	if byName.Region != "MO" {
		t.Fatalf("expected region MO, got %q", byName.Region)
	}

	byCode := normalizeLocation("tx")
	if byCode.State != "TX" {
		t.Fatalf("expected state TX, got %q", byCode.State)
	}
}

func TestNormalizeLocationUnknownCityDegrades(t *testing.T) {
	loc := normalizeLocation("Smallville")

	if loc.State != "" {
		t.Fatalf("expected no state, got %q", loc.State)
	}
	if !containsVariant(loc.CityVariants, "SMALLVILLE") {
		t.Fatalf("expected raw token as its own variant, got %v", loc.CityVariants)
	}
}

func TestNormalizeLocationDeterministicOrder(t *testing.T) {
	first := normalizeLocation("St. Louis, MO")
	for i := 0; i < 10; i++ {
		again := normalizeLocation("St. Louis, MO")
		if !reflect.DeepEqual(first.CityVariants, again.CityVariants) {
			t.Fatalf("variant order changed between calls: %v vs %v", first.CityVariants, again.CityVariants)
		}
		if !reflect.DeepEqual(first.StateVariants, again.StateVariants) {
			t.Fatalf("state variant order changed between calls: %v vs %v", first.StateVariants, again.StateVariants)
		}
	}
}

func TestNormalizeLocationEmpty(t *testing.T) {
	loc := normalizeLocation("   ")
	if loc.City != "" || loc.State != "" || len(loc.CityVariants) != 0 {
		t.Fatalf("expected zero location for blank input, got %+v", loc)
	}
}

func containsVariant(variants []string, want string) bool {
	for _, v := range variants {
		if v == want {
			return true
		}
	}
	return false
}
