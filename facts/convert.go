package facts

import (
	"fmt"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// FromValue builds a typed instance of type t from decoded JSON or YAML data.
// Object attributes are typed from the schema; keys that are not attributes of
// t are rejected.
func FromValue(s *schema.Schema, t schema.QualifiedName, raw any) (*TypedInstance, error) {
	typ, ok := s.Type(t)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("type %s: %w", t, schema.ErrUnknownType), "facts", "FromValue", "type lookup")
	}

	if list, isList := raw.([]any); isList {
		items := make([]*TypedInstance, 0, len(list))
		for _, elem := range list {
			item, err := FromValue(s, t, elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return Collection(t, items...), nil
	}

	if typ.Scalar {
		switch v := raw.(type) {
		case map[string]any:
			return nil, errors.WrapInvalid(
				fmt.Errorf("scalar %s given an object: %w", t, errors.ErrInvalidData),
				"facts", "FromValue", "scalar conversion")
		case int:
			return Scalar(t, int64(v)), nil
		default:
			return Scalar(t, raw), nil
		}
	}

	obj, isObj := raw.(map[string]any)
	if !isObj {
		return nil, errors.WrapInvalid(
			fmt.Errorf("object %s given %T: %w", t, raw, errors.ErrInvalidData),
			"facts", "FromValue", "object conversion")
	}

	fields := make(map[string]*TypedInstance, len(obj))
	for key, value := range obj {
		attr, ok := typ.Attribute(key)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%s has no attribute %s: %w", t, key, errors.ErrInvalidData),
				"facts", "FromValue", "attribute lookup")
		}
		if value == nil {
			continue
		}
		field, err := FromValue(s, attr.Type, value)
		if err != nil {
			return nil, err
		}
		fields[key] = field
	}
	return Object(t, fields), nil
}
