package workerctl

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver computes a setting at fetch time. It may fetch other settings from
// the store it is given.
type Resolver func(s *Store) (any, error)

// Store holds deploy settings by key. A value is either plain or a Resolver
// evaluated on every fetch, so derived settings follow their inputs when those
// are overridden later. A Store is not safe for concurrent use.
type Store struct {
	values    map[string]any
	resolving map[string]struct{}
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		values:    make(map[string]any),
		resolving: make(map[string]struct{}),
	}
}

// Set stores a plain value, replacing any earlier value or resolver
func (s *Store) Set(key string, value any) {
	s.values[key] = value
}

// SetFunc stores a resolver evaluated at fetch time
func (s *Store) SetFunc(key string, fn Resolver) {
	s.values[key] = fn
}

// Has reports whether key has a value or resolver
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the set keys in no particular order
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Fetch resolves key. A key that was never set yields an error wrapping
// ErrConfigurationMissing; a key set to nil yields (nil, nil).
func (s *Store) Fetch(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, missing(key)
	}

	fn, ok := v.(Resolver)
	if !ok {
		return v, nil
	}

	if _, busy := s.resolving[key]; busy {
		return nil, &ConfigError{Key: key, Err: ErrResolveCycle}
	}
	s.resolving[key] = struct{}{}
	defer delete(s.resolving, key)

	return fn(s)
}

// FetchOr resolves key, returning def when the key was never set
func (s *Store) FetchOr(key string, def any) (any, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Fetch(key)
}

// String resolves key as a string. nil resolves to "".
func (s *Store) String(key string) (string, error) {
	v, err := s.Fetch(key)
	if err != nil {
		return "", err
	}
	str, err := toString(v)
	if err != nil {
		return "", &ConfigError{Key: key, Err: err}
	}
	return str, nil
}

// RequiredString resolves key as a non-empty string
func (s *Store) RequiredString(key string) (string, error) {
	str, err := s.String(key)
	if err != nil {
		return "", err
	}
	if str == "" {
		return "", missing(key)
	}
	return str, nil
}

// Int resolves key as an integer
func (s *Store) Int(key string) (int, error) {
	v, err := s.Fetch(key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, missing(key)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return n, nil
}

// OptionalInt resolves key as an integer; nil and unset keys yield nil
func (s *Store) OptionalInt(key string) (*int, error) {
	v, err := s.FetchOr(key, nil)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if str, ok := v.(string); ok && str == "" {
		return nil, nil
	}
	n, err := toInt(v)
	if err != nil {
		return nil, &ConfigError{Key: key, Err: err}
	}
	return &n, nil
}

// Strings resolves key as a list of strings. nil resolves to an empty list.
func (s *Store) Strings(key string) ([]string, error) {
	v, err := s.Fetch(key)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			str, err := toString(item)
			if err != nil {
				return nil, &ConfigError{Key: fmt.Sprintf("%s[%d]", key, i), Err: err}
			}
			out = append(out, str)
		}
		return out, nil
	case string:
		if list == "" {
			return nil, nil
		}
		return []string{list}, nil
	default:
		return nil, &ConfigError{Key: key, Err: fmt.Errorf("expected a list, got %T", v)}
	}
}

// Merge sets every entry of values. Strings referencing other settings as
// ${key} become resolvers.
func (s *Store) Merge(values map[string]any) {
	for k, v := range values {
		if str, ok := v.(string); ok && strings.Contains(str, "${") {
			s.SetFunc(k, Expand(str))
			continue
		}
		s.Set(k, v)
	}
}

// LoadYAML merges a flat YAML mapping of setting key to value
func (s *Store) LoadYAML(data []byte) error {
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}
	s.Merge(values)
	return nil
}

// LoadFile merges the YAML settings file at path
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading settings file: %w", err)
	}
	if err := s.LoadYAML(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// SetAssignment applies a "key=value" override. The value is decoded as a
// YAML scalar or flow sequence, so "5" is an integer and "null" unsets.
func (s *Store) SetAssignment(assignment string) error {
	key, raw, ok := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid setting %q, want key=value", assignment)
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return &ConfigError{Key: key, Err: err}
	}
	s.Merge(map[string]any{key: value})
	return nil
}

// Expand returns a resolver that substitutes ${key} references in tmpl with
// the string value of those settings
func Expand(tmpl string) Resolver {
	return func(s *Store) (any, error) {
		var firstErr error
		out := os.Expand(tmpl, func(key string) string {
			v, err := s.String(key)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			return v
		})
		if firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	}
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint64:
		if t > math.MaxInt {
			return 0, fmt.Errorf("value %d out of range", t)
		}
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("expected an integer, got %v", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
