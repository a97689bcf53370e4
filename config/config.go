// Package config reads and writes the KEY=value file that links one stage
// generator run to the next.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"smile/fault"
	"smile/serialize"
)

type entry struct {
	raw     string
	value   int
	numeric bool
	width   int
}

// File keeps entries in the order they were first seen, so a rewrite
// only moves values, never lines.
type File struct {
	Path    string
	keys    []string
	entries map[string]*entry
}

func New(path string) *File {
	return &File{Path: path, entries: map[string]*entry{}}
}

// Load reads path. Lines without both a key and a value are ignored.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("load %q", path), err)
	}
	f := Parse(data)
	f.Path = path
	return f, nil
}

func Parse(data []byte) *File {
	f := New("")
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(line, "=")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		e := f.entry(parts[0])
		e.raw = parts[1]
		e.value, e.numeric = ParseInt(parts[1])
		e.width = serialize.Auto
	}
	return f
}

func (f *File) entry(key string) *entry {
	e, ok := f.entries[key]
	if !ok {
		e = &entry{}
		f.entries[key] = e
		f.keys = append(f.keys, key)
	}
	return e
}

// ParseInt reads a leading integer the way the linkage files were always
// read: optional sign, 0x for hex, and anything after the digits ignored.
func ParseInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	n, digits := 0, 0
	for _, c := range []byte(s) {
		d := digitValue(c)
		if d < 0 || d >= base {
			break
		}
		n = n*base + d
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func (f *File) Keys() []string { return append([]string(nil), f.keys...) }

// Int returns the numeric value of key.
func (f *File) Int(key string) (int, bool) {
	e, ok := f.entries[key]
	if !ok || !e.numeric {
		return 0, false
	}
	return e.value, true
}

// Override returns the value of key only when it is set and non-zero.
func (f *File) Override(key string) (int, bool) {
	v, ok := f.Int(key)
	return v, ok && v != 0
}

func (f *File) Raw(key string) (string, bool) {
	e, ok := f.entries[key]
	if !ok {
		return "", false
	}
	return e.raw, true
}

// Set stores a numeric value rendered with the given hex width.
func (f *File) Set(key string, v int, width int) {
	e := f.entry(key)
	e.value, e.numeric, e.width = v, true, width
	e.raw = serialize.Hex(v, width)
}

// Value is one provided key for Provide.
type Value struct {
	Key   string
	Value int
	Width int
}

// Provide stores vals and reports whether any of them differed from what
// the file held.
func (f *File) Provide(vals ...Value) bool {
	changed := false
	for _, v := range vals {
		if cur, ok := f.Int(v.Key); !ok || cur != v.Value {
			changed = true
		}
	}
	if changed {
		for _, v := range vals {
			f.Set(v.Key, v.Value, v.Width)
		}
	}
	return changed
}

func (f *File) Bytes() []byte {
	var buf bytes.Buffer
	for _, k := range f.keys {
		e := f.entries[k]
		v := e.raw
		if e.numeric {
			v = serialize.Hex(e.value, e.width)
		}
		buf.WriteString(k + "=" + v + "\n")
	}
	return buf.Bytes()
}

func (f *File) Save() error {
	if err := os.WriteFile(f.Path, f.Bytes(), 0644); err != nil {
		return fault.Wrap(fault.IO, fmt.Sprintf("save %q", f.Path), err)
	}
	return nil
}
