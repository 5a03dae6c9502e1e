package kv

import "encoding/json"

// toItem normalizes any Go value (typically a domain struct) into a JSONItem
// by round-tripping it through JSON, so callers can Put structs directly.
func toItem(v interface{}) (JSONItem, error) {
	if item, ok := v.(JSONItem); ok {
		return item, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := JSONItem{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrate decodes a stored item back into out, a pointer to the caller's
// expected shape.
func hydrate(item JSONItem, out interface{}) error {
	b, err := json.Marshal(map[string]interface{}(item))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
