package cache

import (
	"encoding/json"
	"fmt"
)

// GetOrCompute returns the value cached under key or, on a miss, runs
// compute and stores its result. force skips the lookup and overwrites
// whatever is cached. A nil cache always computes. The bool reports a hit.
func GetOrCompute(c Cache, key string, force bool, compute func() ([]byte, error)) ([]byte, bool, error) {
	if c != nil && !force {
		if val, found := c.Get(key); found {
			return val, true, nil
		}
	}

	val, err := compute()
	if err != nil {
		return nil, false, err
	}

	if c != nil {
		if err := c.Set(key, val, 0); err != nil {
			return nil, false, fmt.Errorf("store %s: %w", key, err)
		}
	}

	return val, false, nil
}

// GetOrComputeJSON is GetOrCompute for values persisted as JSON. A cached
// blob that no longer decodes is recomputed.
func GetOrComputeJSON[T any](c Cache, key string, force bool, compute func() (T, error)) (T, bool, error) {
	var computed T
	encode := func() ([]byte, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		computed = v
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		return data, nil
	}

	data, hit, err := GetOrCompute(c, key, force, encode)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !hit {
		return computed, false, nil
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return GetOrComputeJSON(c, key, true, compute)
	}
	return out, true, nil
}
