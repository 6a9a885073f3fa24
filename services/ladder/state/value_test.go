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
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Coerce(t *testing.T) {
	tests := []struct {
		name    string
		in      Value
		kind    Kind
		want    Value
		wantErr bool
	}{
		{"int to real", Int(3), KindReal, Real(3), false},
		{"real to int truncates", Real(-2.7), KindInt, Int(-2), false},
		{"bool to int", Bool(true), KindInt, Int(1), false},
		{"int to bool", Int(0), KindBool, Bool(false), false},
		{"same kind", Text("x"), KindText, Text("x"), false},
		{"text to int fails", Text("5"), KindInt, Value{}, true},
		{"int to text fails", Int(5), KindText, Value{}, true},
		{"none fails", Value{}, KindInt, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Coerce(tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrTypeMismatch))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestValue_Of(t *testing.T) {
	v, err := Of(uint16(7))
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())

	v, err = Of(float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, KindReal, v.Kind())

	_, err = Of([]int{1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = Of(Value{})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = Of(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = Of(^uint(0))
	if strconv.IntSize == 64 {
		assert.ErrorIs(t, err, ErrUnsupportedValue, "uint above MaxInt64 does not wrap")
	} else {
		assert.NoError(t, err)
	}

	v, err = Of(uint(math.MaxInt32))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt32), v.AsInt())
}

func TestValue_Truthiness(t *testing.T) {
	assert.True(t, Int(-1).AsBool())
	assert.False(t, Real(0).AsBool())
	assert.True(t, Text("on").AsBool())
	assert.False(t, Value{}.AsBool())
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Real(1)), "different kinds are never equal")
	assert.True(t, Value{}.Equal(Value{}))
}

func TestKind_Parse(t *testing.T) {
	for _, k := range []Kind{KindBool, KindInt, KindReal, KindText} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("decimal")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
