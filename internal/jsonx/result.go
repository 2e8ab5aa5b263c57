package jsonx

// Parsed is the tagged outcome of a parse-or-fallback step. Model output is
// untyped text expected to embed one JSON object; rather than surfacing parse
// errors, callers receive either the decoded value or the fallback together
// with the reason the fallback was taken.
type Parsed[T any] struct {
	Value    T
	Fallback bool
	Reason   string
}

// ParseOr decodes the first JSON object in text into a T and validates it.
// Any extraction, decode, or validation failure yields the fallback value
// tagged with a reason. validate may be nil.
func ParseOr[T any](text string, fallback T, validate func(T) error) Parsed[T] {
	var v T
	if err := Unmarshal(text, &v); err != nil {
		return Parsed[T]{Value: fallback, Fallback: true, Reason: err.Error()}
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return Parsed[T]{Value: fallback, Fallback: true, Reason: err.Error()}
		}
	}
	return Parsed[T]{Value: v}
}
