// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"fmt"
	"strings"
)

// Tag is an immutable descriptor of a named controller point.
//
// Description:
//
//	A Tag carries identity (Name), a declared Kind, the Retentive flag and
//	a typed Default. It never stores the live value; that lives in
//	Snapshot. Two tags are the same point when their names match.
//
// Thread Safety: Immutable, safe for concurrent use.
type Tag struct {
	// Name is the tag identity, e.g. "Motor" or "DS[3]".
	Name string

	// Kind is the declared value kind.
	Kind Kind

	// Retentive tags keep their value across a stop→run transition and a
	// reboot with battery present.
	Retentive bool

	// Default is the value the tag resets to. Always of Kind.
	Default Value
}

// TagOption customizes a Tag built by one of the constructors.
type TagOption func(*Tag)

// Retentive marks the tag as retentive.
func Retentive() TagOption {
	return func(t *Tag) { t.Retentive = true }
}

// WithDefault overrides the typed default. The value is coerced to the tag
// kind when the tag is built; an incompatible default makes the tag invalid
// (see Validate).
func WithDefault(v Value) TagOption {
	return func(t *Tag) { t.Default = v }
}

// NewTag builds a tag of the given kind.
func NewTag(name string, kind Kind, opts ...TagOption) Tag {
	t := Tag{Name: name, Kind: kind, Default: Zero(kind)}
	for _, opt := range opts {
		opt(&t)
	}
	if c, err := t.Default.Coerce(kind); err == nil {
		t.Default = c
	}
	return t
}

// BoolTag builds a boolean tag.
func BoolTag(name string, opts ...TagOption) Tag { return NewTag(name, KindBool, opts...) }

// IntTag builds an integer tag.
func IntTag(name string, opts ...TagOption) Tag { return NewTag(name, KindInt, opts...) }

// RealTag builds a float tag.
func RealTag(name string, opts ...TagOption) Tag { return NewTag(name, KindReal, opts...) }

// TextTag builds a text tag.
func TextTag(name string, opts ...TagOption) Tag { return NewTag(name, KindText, opts...) }

// Block builds count tags named "<prefix>[start]" .. "<prefix>[start+count-1]".
//
// Description:
//
//	Blocks model addressed memory banks (DS[1..100], C[1..2000]) that
//	Indirect operands and BlockCopy address by index.
func Block(prefix string, start, count int, kind Kind, opts ...TagOption) []Tag {
	tags := make([]Tag, 0, count)
	for i := start; i < start+count; i++ {
		tags = append(tags, NewTag(IndexedName(prefix, i), kind, opts...))
	}
	return tags
}

// Bank is an addressed block of tags sharing a prefix and kind.
type Bank struct {
	Prefix string
	Start  int
	Tags   []Tag
}

// NewBank builds a Bank over Block(prefix, start, count, kind, opts...).
func NewBank(prefix string, start, count int, kind Kind, opts ...TagOption) Bank {
	return Bank{Prefix: prefix, Start: start, Tags: Block(prefix, start, count, kind, opts...)}
}

// At returns the tag at address i.
func (b Bank) At(i int) (Tag, bool) {
	off := i - b.Start
	if off < 0 || off >= len(b.Tags) {
		return Tag{}, false
	}
	return b.Tags[off], true
}

// Len returns the number of tags in the bank.
func (b Bank) Len() int { return len(b.Tags) }

// Kind returns the kind of the bank's tags, or KindNone for an empty bank.
func (b Bank) Kind() Kind {
	if len(b.Tags) == 0 {
		return KindNone
	}
	return b.Tags[0].Kind
}

// IndexedName returns the canonical name of element i of a block.
func IndexedName(prefix string, i int) string {
	return fmt.Sprintf("%s[%d]", prefix, i)
}

// Validate checks the descriptor is usable.
func (t Tag) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidTag)
	}
	if t.Kind == KindNone || t.Kind > KindText {
		return fmt.Errorf("%w: tag %q has no kind", ErrInvalidTag, t.Name)
	}
	if t.Default.Kind() != t.Kind {
		return fmt.Errorf("%w: tag %q default %s is not %s", ErrInvalidTag, t.Name, t.Default, t.Kind)
	}
	return nil
}

// SameAs reports whether two descriptors carry identical metadata.
func (t Tag) SameAs(o Tag) bool {
	return t.Name == o.Name &&
		t.Kind == o.Kind &&
		t.Retentive == o.Retentive &&
		t.Default.Equal(o.Default)
}

// String returns the tag name.
func (t Tag) String() string { return t.Name }
