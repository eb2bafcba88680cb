// Package validation checks VM configurations against a schema and finds
// clusters able to run them.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudpasture/shepherd/pkg/domain/schema"
)

// Violation points at one rejected part of a configuration.
type Violation struct {
	// dotted path of the offending field, e.g. "hugepage_size"
	Path string

	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// EffectiveConfig resolves what will actually be executed.
//
// When an admin supplied a modified configuration it REPLACES the payload
// wholesale. No merging: a reviewer reading the modified document sees
// everything that will run, with no originally-submitted leftovers.
func EffectiveConfig(payload []byte, modified []byte) []byte {
	if modified != nil {
		return modified
	}
	return payload
}

// Validate checks config against s and reports every violation found.
//
// The schema's field set is closed. Unknown fields are violations, so are
// missing required ones and values off their kind, enum, or bounds.
func Validate(config []byte, s schema.Schema) ([]Violation, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(config, &doc); err != nil {
		return nil, fmt.Errorf("configuration is not a JSON object: %w", err)
	}

	violations := []Violation{}

	// stable order for reproducible reports
	paths := make([]string, 0, len(doc))
	for path := range doc {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		spec, known := s.Fields[path]
		if !known {
			violations = append(violations, Violation{
				Path:    path,
				Message: fmt.Sprintf("unknown field (schema %s)", s.Version),
			})
			continue
		}
		if v, ok := checkKind(path, doc[path], spec); !ok {
			violations = append(violations, v)
		}
	}

	required := make([]string, 0, len(s.Fields))
	for path, spec := range s.Fields {
		if spec.Required {
			required = append(required, path)
		}
	}
	sort.Strings(required)
	for _, path := range required {
		if _, ok := doc[path]; !ok {
			violations = append(violations, Violation{
				Path: path, Message: "required field is missing",
			})
		}
	}

	return violations, nil
}

func checkKind(path string, value interface{}, spec schema.FieldSpec) (Violation, bool) {
	switch spec.Kind {
	case schema.KindString:
		if _, ok := value.(string); !ok {
			return Violation{Path: path, Message: "should be a string"}, false
		}

	case schema.KindBool:
		if _, ok := value.(bool); !ok {
			return Violation{Path: path, Message: "should be a boolean"}, false
		}

	case schema.KindInt:
		f, ok := value.(float64)
		if !ok || f != float64(int(f)) {
			return Violation{Path: path, Message: "should be an integer"}, false
		}
		n := int(f)
		if spec.Min != nil && n < *spec.Min {
			return Violation{
				Path: path, Message: fmt.Sprintf("should be %d or more", *spec.Min),
			}, false
		}
		if spec.Max != nil && *spec.Max < n {
			return Violation{
				Path: path, Message: fmt.Sprintf("should be %d or less", *spec.Max),
			}, false
		}

	case schema.KindEnum:
		s, ok := value.(string)
		if !ok {
			return Violation{Path: path, Message: "should be a string"}, false
		}
		for _, accepted := range spec.Values {
			if s == accepted {
				return Violation{}, true
			}
		}
		return Violation{
			Path: path, Message: fmt.Sprintf("'%s' is not one of %v", s, spec.Values),
		}, false

	case schema.KindStringList:
		items, ok := value.([]interface{})
		if !ok {
			return Violation{Path: path, Message: "should be a list of strings"}, false
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return Violation{Path: path, Message: "should be a list of strings"}, false
			}
		}

	case schema.KindObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return Violation{Path: path, Message: "should be an object"}, false
		}
	}

	return Violation{}, true
}
