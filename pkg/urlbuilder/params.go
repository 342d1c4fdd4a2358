package urlbuilder

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Pair is a single search parameter.
type Pair struct {
	Key   string
	Value string
}

// Params is an ordered multi-map of search parameters.
// Insertion order and duplicate keys are preserved, unlike url.Values.
type Params struct {
	pairs []Pair
}

// ParamSource is anything that can be turned into a parameter set.
type ParamSource interface {
	Params() *Params
}

// Query is a raw query string such as "a=1&b=2" or "?a=1".
type Query string

// Pairs is an ordered list of key/value pairs.
type Pairs []Pair

// Values is a key to value mapping. Nil values, including nil pointers, are
// dropped; other pointers contribute the value they point to. Keys are
// emitted in sorted order.
type Values map[string]any

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{}
}

// ParseQuery parses a raw query string.
// A leading "?" is stripped and a key without "=" gets an empty value.
func ParseQuery(raw string) *Params {
	p := NewParams()
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return p
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		p.Append(unescape(key), unescape(value))
	}
	return p
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}

// Params implements ParamSource.
func (q Query) Params() *Params {
	return ParseQuery(string(q))
}

// Params implements ParamSource.
func (ps Pairs) Params() *Params {
	p := NewParams()
	for _, pair := range ps {
		p.Append(pair.Key, pair.Value)
	}
	return p
}

// Params implements ParamSource.
func (v Values) Params() *Params {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewParams()
	for _, k := range keys {
		if isNil(v[k]) {
			continue
		}
		p.Append(k, stringify(v[k]))
	}
	return p
}

// Params implements ParamSource by returning a copy of p.
func (p *Params) Params() *Params {
	return p.Clone()
}

// Len returns the number of pairs, duplicates included.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pairs)
}

// Append adds a pair after all existing ones.
func (p *Params) Append(key, value string) {
	p.pairs = append(p.pairs, Pair{Key: key, Value: value})
}

// Get returns the first value for key, or "" and false.
func (p *Params) Get(key string) (string, bool) {
	for _, pair := range p.pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for key in order.
func (p *Params) GetAll(key string) []string {
	var out []string
	for _, pair := range p.pairs {
		if pair.Key == key {
			out = append(out, pair.Value)
		}
	}
	return out
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// HasValue reports whether the exact key/value pair is present.
func (p *Params) HasValue(key, value string) bool {
	for _, pair := range p.pairs {
		if pair.Key == key && pair.Value == value {
			return true
		}
	}
	return false
}

// Set replaces all values of key with value. The pair keeps the position of
// the first existing occurrence, or is appended when key is new.
func (p *Params) Set(key, value string) {
	p.setAll(key, []string{value})
}

func (p *Params) setAll(key string, values []string) {
	out := make([]Pair, 0, len(p.pairs)+len(values))
	placed := false
	for _, pair := range p.pairs {
		if pair.Key != key {
			out = append(out, pair)
			continue
		}
		if !placed {
			for _, v := range values {
				out = append(out, Pair{Key: key, Value: v})
			}
			placed = true
		}
	}
	if !placed {
		for _, v := range values {
			out = append(out, Pair{Key: key, Value: v})
		}
	}
	p.pairs = out
}

// Delete removes every pair with key.
func (p *Params) Delete(key string) {
	out := p.pairs[:0]
	for _, pair := range p.pairs {
		if pair.Key != key {
			out = append(out, pair)
		}
	}
	p.pairs = out
}

// Keys returns the distinct keys in first-appearance order.
func (p *Params) Keys() []string {
	seen := make(map[string]bool, len(p.pairs))
	var keys []string
	for _, pair := range p.pairs {
		if !seen[pair.Key] {
			seen[pair.Key] = true
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

// Pairs returns a copy of the underlying pairs.
func (p *Params) Pairs() []Pair {
	if p == nil {
		return nil
	}
	out := make([]Pair, len(p.pairs))
	copy(out, p.pairs)
	return out
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	if p == nil {
		return NewParams()
	}
	return &Params{pairs: p.Pairs()}
}

// Encode serializes the set using form encoding in insertion order.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i, pair := range p.pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(pair.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(pair.Value))
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	return p.Encode()
}

// Merge layers override on top of base and returns a new set.
// Keys present in override replace every base value for that key, keys
// unique to either side are kept, and duplicates on one side stay in order.
func Merge(base, override ParamSource) *Params {
	out := sourceParams(base)
	over := sourceParams(override)
	for _, key := range over.Keys() {
		out.setAll(key, over.GetAll(key))
	}
	return out
}

func sourceParams(src ParamSource) *Params {
	if src == nil {
		return NewParams()
	}
	p := src.Params()
	if p == nil {
		return NewParams()
	}
	return p
}

// isNil reports whether v is nil or a nil pointer, map, slice, func,
// channel or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
