package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON decodes the value at key into v. It reports false when the key
// does not exist.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Batch collects JSON-encoded entries for a single PutAll.
type Batch map[string][]byte

// Set encodes v under key.
func (b Batch) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	b[key] = raw
	return nil
}
