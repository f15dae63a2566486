package model

// Suggestion is the best-known mapping for one raw header or value.
type Suggestion struct {
	Target     string  `json:"target"`
	UsageCount int     `json:"usage_count"`
	Confidence float64 `json:"confidence"`
}

// HeaderSuggestions maps raw header text to its suggested target field.
// Headers without a learned pattern are absent.
type HeaderSuggestions map[string]Suggestion

// ValueSuggestions maps raw cell values to their suggested target ID.
type ValueSuggestions map[string]Suggestion

// FieldValueSuggestions groups value suggestions by comp field.
type FieldValueSuggestions map[string]ValueSuggestions

// Targets flattens the suggestions to raw key -> target.
func (h HeaderSuggestions) Targets() map[string]string {
	out := make(map[string]string, len(h))
	for k, s := range h {
		out[k] = s.Target
	}
	return out
}

// Targets flattens the suggestions to raw value -> target ID.
func (v ValueSuggestions) Targets() map[string]string {
	out := make(map[string]string, len(v))
	for k, s := range v {
		out[k] = s.Target
	}
	return out
}

// Confirmation is the set of choices a user confirmed for one import batch.
// An empty target means the user chose to ignore that header or value.
type Confirmation struct {
	Headers map[string]string            `json:"headers,omitempty" yaml:"headers,omitempty"`
	Values  map[string]map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Empty reports whether the confirmation carries no entries at all.
func (c Confirmation) Empty() bool {
	if len(c.Headers) > 0 {
		return false
	}
	for _, vals := range c.Values {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// LearnResult summarizes a learning write. Err aggregates individual upsert
// failures; it is informational and never fails the import.
type LearnResult struct {
	Persisted int   `json:"persisted"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Err       error `json:"-"`
}
