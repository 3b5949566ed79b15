package engine

import (
	"encoding/json"
	"fmt"
)

// ExtractResult returns the payload EndRequest received on its "data" input, as JSON.
func ExtractResult(s RunState) (json.RawMessage, error) {
	if !s.IsComplete() {
		return nil, ErrRunNotComplete
	}
	v, ok := s.cache.Output(s.terminal, EntryPort)
	if !ok {
		return nil, &ResultError{NodeID: s.terminal, Err: fmt.Errorf("%w: no %q input", ErrResultDecode, EntryPort)}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &ResultError{NodeID: s.terminal, Err: fmt.Errorf("%w: %w", ErrResultDecode, err)}
	}
	return raw, nil
}

// DecodeResult extracts the result and decodes it into T.
func DecodeResult[T any](s RunState) (T, error) {
	var out T
	raw, err := ExtractResult(s)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ResultError{NodeID: s.terminal, Err: fmt.Errorf("%w: %w", ErrResultDecode, err)}
	}
	return out, nil
}
