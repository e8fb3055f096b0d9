package store

import "fmt"

// HashReply turns a flat HGETALL-style script reply into a field map.
func HashReply(res any) (map[string]string, error) {
	items, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected hash reply type %T", res)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("hash reply has odd length %d", len(items))
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, ok := items[i].(string)
		if !ok {
			return nil, fmt.Errorf("hash reply key %d has type %T", i, items[i])
		}
		switch v := items[i+1].(type) {
		case string:
			out[k] = v
		case int64:
			out[k] = fmt.Sprintf("%d", v)
		default:
			return nil, fmt.Errorf("hash reply value for %q has type %T", k, v)
		}
	}
	return out, nil
}

func IntReply(res any) (int64, error) {
	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected integer reply type %T", res)
	}
	return n, nil
}
