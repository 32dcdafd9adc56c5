package engine

import (
	"net/url"
	"strconv"
	"strings"
)

// Absent is the sentinel for an integer parameter the caller did not set.
// Any negative value is treated as absent.
const Absent = -1

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered set of query parameters.
//
// The typed setters implement the omission rule: a parameter is recorded
// only when its value differs from the absent sentinel for its type (empty
// string, negative integer, false). Set records unconditionally and is used
// for required parameters.
//
// Insertion order is preserved so encoded commands are deterministic.
// The zero value is ready to use; a nil *Params encodes as empty.
type Params struct {
	pairs []Param
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{}
}

// Set records key=value regardless of value.
func (p *Params) Set(key, value string) *Params {
	p.pairs = append(p.pairs, Param{Key: key, Value: value})
	return p
}

// String records key=value unless value is empty.
func (p *Params) String(key, value string) *Params {
	if value == "" {
		return p
	}
	return p.Set(key, value)
}

// Int records key=value unless value is negative.
func (p *Params) Int(key string, value int) *Params {
	if value < 0 {
		return p
	}
	return p.Set(key, strconv.Itoa(value))
}

// Bool records key=true when value is set; false is omitted.
func (p *Params) Bool(key string, value bool) *Params {
	if !value {
		return p
	}
	return p.Set(key, "true")
}

// Flag records key=true or key=false unconditionally.
func (p *Params) Flag(key string, value bool) *Params {
	return p.Set(key, strconv.FormatBool(value))
}

// Get returns the first value recorded for key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, kv := range p.pairs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Len returns the number of recorded parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pairs)
}

// Pairs returns a copy of the recorded parameters in insertion order.
func (p *Params) Pairs() []Param {
	if p == nil {
		return nil
	}
	out := make([]Param, len(p.pairs))
	copy(out, p.pairs)
	return out
}

// Encode renders the parameters as a URL query string in insertion order.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

func (p *Params) clone() *Params {
	return &Params{pairs: p.Pairs()}
}
