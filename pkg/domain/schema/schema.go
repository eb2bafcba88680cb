// Package schema holds the validation schema for VM configurations.
//
// Schemas are versioned together with the target platform. Each minor
// version of the platform has one schema document; patch releases share it.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Source tells where a schema document came from.
type Source string

const (
	// compiled into the binary
	SourceEmbedded Source = "embedded"

	// fetched from the schema endpoint at runtime
	SourceFetched Source = "fetched"

	// a different (embedded) version substituting for the requested one
	SourceFallback Source = "fallback"
)

// ErrNoFallback is returned when a version is unknown and nothing embedded
// can substitute for it.
var ErrNoFallback = errors.New("no schema and no fallback for version")

type FieldKind string

const (
	KindString     FieldKind = "string"
	KindInt        FieldKind = "int"
	KindBool       FieldKind = "bool"
	KindEnum       FieldKind = "enum"
	KindStringList FieldKind = "string_list"
	KindObject     FieldKind = "object"
)

// FieldSpec describes one accepted field of a VM configuration.
type FieldSpec struct {
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`

	// accepted values, for enum fields.
	Values []string `json:"values,omitempty"`

	// bounds, for int fields. nil = unbounded.
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Schema is one immutable compiled schema document.
//
// Fields is closed: a configuration field with no spec here is an error,
// not a passthrough.
type Schema struct {
	Version string               `json:"version"`
	Fields  map[string]FieldSpec `json:"fields"`
}

// Parse compiles a schema document from JSON.
func Parse(document []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(document, &s); err != nil {
		return Schema{}, err
	}
	if s.Version == "" {
		return Schema{}, errors.New("schema document has no version")
	}
	for name, field := range s.Fields {
		switch field.Kind {
		case KindString, KindInt, KindBool, KindEnum, KindStringList, KindObject:
			// ok
		default:
			return Schema{}, fmt.Errorf("field %s: unknown kind '%s'", name, field.Kind)
		}
	}
	return s, nil
}

// MinorVersion reduces a full version string to its cache key.
//
//	"1.2.3" -> "1.2", "v1.2.3+k3s1" -> "1.2"
func MinorVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	if i := strings.IndexAny(version, "+-"); 0 <= i {
		version = version[:i]
	}
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// VersionLess orders two platform versions by major then minor.
//
// Inputs are normalized through MinorVersion first, so full versions and
// cache keys mix freely.
func VersionLess(a, b string) bool {
	amajor, aminor := splitMinor(MinorVersion(a))
	bmajor, bminor := splitMinor(MinorVersion(b))
	if amajor != bmajor {
		return amajor < bmajor
	}
	return aminor < bminor
}

func splitMinor(v string) (int, int) {
	parts := strings.SplitN(v, ".", 2)
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if 1 < len(parts) {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}
