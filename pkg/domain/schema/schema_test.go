package schema_test

import (
	"testing"

	"github.com/cloudpasture/shepherd/pkg/domain/schema"
)

func TestMinorVersion(t *testing.T) {
	for input, expected := range map[string]string{
		"1.2.3":         "1.2",
		"1.2":           "1.2",
		"v1.29.4":       "1.29",
		"v1.29.4+k3s1":  "1.29",
		"1.30.0-rc.1":   "1.30",
		"2":             "2",
		"v1.28.11+rke2": "1.28",
	} {
		t.Run(input, func(t *testing.T) {
			if actual := schema.MinorVersion(input); actual != expected {
				t.Errorf("MinorVersion(%s) = %s, expected %s", input, actual, expected)
			}
		})
	}
}

func TestVersionLess(t *testing.T) {
	type when struct{ a, b string }
	for _, testcase := range []struct {
		when when
		then bool
	}{
		{when: when{"1.2", "1.3"}, then: true},
		{when: when{"1.3", "1.2"}, then: false},
		{when: when{"1.2", "1.2"}, then: false},
		{when: when{"1.9", "1.10"}, then: true},
		{when: when{"1.30", "2.0"}, then: true},
		{when: when{"v1.29.4+k3s1", "1.30.0"}, then: true},
		{when: when{"1.29.7", "1.29"}, then: false},
	} {
		a, b := testcase.when.a, testcase.when.b
		t.Run(a+" < "+b, func(t *testing.T) {
			if actual := schema.VersionLess(a, b); actual != testcase.then {
				t.Errorf("VersionLess(%s, %s) = %v, expected %v", a, b, actual, testcase.then)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("a well-formed document compiles", func(t *testing.T) {
		s, err := schema.Parse([]byte(`{
			"version": "1.2",
			"fields": {
				"name": {"kind": "string", "required": true},
				"priority": {"kind": "int", "min": 0, "max": 10}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if s.Version != "1.2" {
			t.Errorf("version: %s", s.Version)
		}
		if !s.Fields["name"].Required {
			t.Errorf("name should be required")
		}
		if *s.Fields["priority"].Max != 10 {
			t.Errorf("priority max: %v", s.Fields["priority"].Max)
		}
	})

	t.Run("a document without version is rejected", func(t *testing.T) {
		if _, err := schema.Parse([]byte(`{"fields": {}}`)); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("an unknown field kind is rejected", func(t *testing.T) {
		if _, err := schema.Parse([]byte(`{
			"version": "1.2",
			"fields": {"name": {"kind": "text"}}
		}`)); err == nil {
			t.Error("expected error, got nil")
		}
	})
}
