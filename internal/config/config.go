// Package config implements the typed accessor over testr's key→value
// config bag (spec.md §6, §9: "a simple INI-like bag"; "expose a typed
// config reader that maps the known keys to typed accessors; unknown keys
// are ignored; missing keys return a sentinel so callers can distinguish
// 'absent' from 'empty'").
//
// The bag is backed by gopkg.in/ini.v1 fronted by spf13/viper configured
// for the "ini" config type, matching the on-disk format of the original
// tool's .testr.conf. Both dependencies are carried (indirectly) by the
// teacher's go.mod; this package is where they get put to direct use.
package config

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"
)

// Known keys, spec.md §6.
const (
	KeyTestCommand         = "test_command"
	KeyTestIDOption        = "test_id_option"
	KeyTestIDListDefault   = "test_id_list_default"
	KeyTestListOption      = "test_list_option"
	KeyTestRunConcurrency  = "test_run_concurrency"
	KeyInstanceProvision   = "instance_provision"
	KeyInstanceExecute     = "instance_execute"
	KeyInstanceDispose     = "instance_dispose"
	KeyListProfiles        = "list_profiles"
	KeyDefaultProfiles     = "default_profiles"
	KeyGroupRegex          = "group_regex"
	KeyFilterTags          = "filter_tags"
	KeyTerminationGrace    = "termination_grace"
)

// section is the only section spec.md names: "configuration bag (section
// DEFAULT)". ini.v1 calls the implicit top section DEFAULT.
const section = "DEFAULT"

// Bag is a read-only view over a parsed INI config.
type Bag struct {
	v *viper.Viper
}

// Load parses an INI-formatted config bag from r.
func Load(r io.Reader) (*Bag, error) {
	v := viper.New()
	v.SetConfigType("ini")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &Bag{v: v}, nil
}

// LoadFile parses an INI-formatted config bag from a file on disk.
func LoadFile(path string) (*Bag, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return &Bag{v: v}, nil
}

// Empty returns a Bag with no keys set, useful for tests and for a "no
// config file present" default.
func Empty() *Bag {
	b, _ := Load(bytes.NewBufferString(""))
	return b
}

func (b *Bag) key(name string) string {
	// viper lower-cases and, for ini, namespaces keys as section.key; the
	// DEFAULT section's keys are also reachable unqualified, but we look
	// them up explicitly to avoid depending on that fallback.
	return section + "." + name
}

// String returns the string value of key and whether it was present at
// all. Missing keys return ("", false) so callers can distinguish absent
// from empty, per spec §9.
func (b *Bag) String(key string) (string, bool) {
	k := b.key(key)
	if !b.v.IsSet(k) {
		if !b.v.IsSet(key) {
			return "", false
		}
		return b.v.GetString(key), true
	}
	return b.v.GetString(k), true
}

// StringOr returns the value of key, or fallback if absent.
func (b *Bag) StringOr(key, fallback string) string {
	if v, ok := b.String(key); ok {
		return v
	}
	return fallback
}

// Duration parses key as a Go duration; ok is false if the key is absent
// or does not parse.
func (b *Bag) Duration(key string) (time.Duration, bool) {
	s, ok := b.String(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// RequireString returns the string value of key, or an error naming the
// offending key (Misconfigured, spec §7) if it is absent.
func (b *Bag) RequireString(key string) (string, error) {
	v, ok := b.String(key)
	if !ok {
		return "", fmt.Errorf("%w: missing required config key %q", ErrMisconfigured, key)
	}
	return v, nil
}
