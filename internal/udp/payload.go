package udp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeMap serializes m as a flat JSON object whose values are all
// strings. Keys come out sorted; nil values are omitted.
//
//	EncodeMap(map[string]any{"a": 1, "b": "x"}) // {"a":"1","b":"x"}
func EncodeMap(m map[string]any) ([]byte, error) {
	flat := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		flat[k] = stringify(v)
	}

	data, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("encode map payload: %w", err)
	}
	return data, nil
}

// DecodeMap parses a payload produced by EncodeMap.
func DecodeMap(data []byte) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode map payload: %w", err)
	}
	return m, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}

// decodeText turns raw datagram bytes into text, replacing invalid UTF-8.
func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
