package command

// Coerce nudges a single argument toward the declared parameter kind
// using a fixed table of safe widenings. JSON transports deliver every
// number as float64 and wrap identifiers as {"value": ...} objects; the
// table undoes exactly that. A value with no applicable rule passes
// through unchanged; coercion never fails, the handler sees whatever
// arrived.
func Coerce(v any, k Kind) any {
	if v == nil {
		return nil
	}

	switch k {
	case KindString:
		if m, ok := v.(map[string]any); ok {
			if s, ok := m["value"].(string); ok {
				return s
			}
		}

	case KindInt:
		switch x := v.(type) {
		case int32:
			return int(x)
		case int64:
			return int(x)
		case float32:
			return int(x)
		case float64:
			return int(x)
		}

	case KindFloat:
		switch x := v.(type) {
		case int:
			return float64(x)
		case int32:
			return float64(x)
		case int64:
			return float64(x)
		case float32:
			return float64(x)
		}

	case KindBool:
		switch x := v.(type) {
		case int:
			return x != 0
		case int32:
			return x != 0
		case int64:
			return x != 0
		case float32:
			return x != 0
		case float64:
			return x != 0
		}
	}

	return v
}

// missingDefault fills a trailing parameter the caller did not supply.
// String parameters default to empty; everything else is nil. Numeric
// parameters are never fabricated.
func missingDefault(k Kind) any {
	if k == KindString {
		return ""
	}
	return nil
}

// buildArgs shapes the supplied arguments to the variant's parameters:
// one coerced value per declared parameter, defaults filling a short
// tail, extras from a lenient fallback selection dropped.
//
// A variant whose sole parameter is KindList bypasses all of that and
// receives a copy of the full argument list as its one value.
func buildArgs(v Variant, args []any) []any {
	if len(v.Params) == 1 && v.Params[0] == KindList {
		return []any{append([]any(nil), args...)}
	}

	out := make([]any, len(v.Params))
	for i, k := range v.Params {
		if i < len(args) {
			out[i] = Coerce(args[i], k)
		} else {
			out[i] = missingDefault(k)
		}
	}
	return out
}
