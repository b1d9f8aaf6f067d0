package codec

import (
	"fmt"
	"reflect"
)

// Convert shapes v into a value of type target. Values already assignable
// are returned as is; others (typically the generic form a remote store
// decodes into) are re-encoded with c and decoded into target.
func Convert(c Codec, v any, target reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if c == nil {
		c = Default
	}

	data, err := c.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("codec: re-encode %T: %w", v, err)
	}

	out := reflect.New(target)
	if err := c.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("codec: convert %T to %s: %w", v, target, err)
	}
	return out.Elem(), nil
}
