// Package env composes explicit process environments for subprocesses.
//
// An Env is built once per architecture and handed to every command run for
// it; the environment of the running process is never modified.
package env

import (
	"os"
	"sort"
	"strings"
)

// Env maps variable names to values.
type Env map[string]string

// FromEnviron parses a list of "key=value" strings, as returned by
// os.Environ.
func FromEnviron(environ []string) Env {
	e := make(Env, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			e[k] = v
		}
	}
	return e
}

// Current returns the environment of the running process.
func Current() Env {
	return FromEnviron(os.Environ())
}

// Clone returns a copy of e that can be modified independently.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Set sets key to value.
func (e Env) Set(key, value string) {
	e[key] = value
}

// Get returns the value of key, or "" when unset.
func (e Env) Get(key string) string {
	return e[key]
}

// Prepend puts value in front of the path list stored in key.
func (e Env) Prepend(key string, values ...string) {
	list := make([]string, 0, len(values)+1)
	for _, v := range values {
		if v != "" {
			list = append(list, v)
		}
	}
	if cur := e[key]; cur != "" {
		list = append(list, cur)
	}
	e[key] = strings.Join(list, string(os.PathListSeparator))
}

// AppendFlag appends a space separated flag to key.
func (e Env) AppendFlag(key, flag string) {
	cur := e[key]
	if cur == "" {
		e[key] = flag
		return
	}
	e[key] = strings.TrimSpace(cur + " " + flag)
}

// Merge returns a copy of e with every entry of override applied on top.
func (e Env) Merge(override Env) Env {
	out := e.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Environ returns e as a sorted list of "key=value" strings, suitable for
// exec.Cmd.Env.
func (e Env) Environ() []string {
	keys := e.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e[k])
	}
	return out
}

// Keys returns the variable names in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff returns the keys whose value differs between base and e, including
// keys missing from base.
func (e Env) Diff(base Env) []string {
	var keys []string
	for _, k := range e.Keys() {
		if v, ok := base[k]; !ok || v != e[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
