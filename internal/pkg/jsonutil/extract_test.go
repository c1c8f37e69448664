package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	got, ok := ExtractObject("analysis below\n```json\n{\"a\": {\"b\": 1}}\n```\ntrailing }")
	assert.True(t, ok)
	assert.Equal(t, "{\"a\": {\"b\": 1}}\n```\ntrailing }", got)

	got, ok = ExtractObject(`prefix {"signal":"BUY"} suffix`)
	assert.True(t, ok)
	assert.Equal(t, `{"signal":"BUY"}`, got)

	_, ok = ExtractObject("no json here")
	assert.False(t, ok)
	_, ok = ExtractObject("} reversed {")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     string
		repaired bool
		ok       bool
	}{
		{name: "strict", in: `{"a": 1}`, want: `{"a": 1}`, ok: true},
		{name: "single quotes", in: `{'a': 'x'}`, want: `{"a": "x"}`, repaired: true, ok: true},
		{name: "bare keys", in: `{signal: "BUY", stop_loss: 1.5}`, want: `{"signal": "BUY", "stop_loss": 1.5}`, repaired: true, ok: true},
		{name: "trailing comma", in: `{"a": [1, 2,], "b": 3,}`, want: `{"a": [1, 2], "b": 3}`, repaired: true, ok: true},
		{name: "unrecoverable", in: `{"a": 1 "b": 2}`, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, repaired, ok := Normalize(tc.in)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.Equal(t, tc.repaired, repaired)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRepair_BareKeysOnlyAfterDelimiters(t *testing.T) {
	// 值内部的 "word:" 不会被当作键
	got := Repair(`{reason: "price near support: rebound"}`)
	assert.Equal(t, `{"reason": "price near support: rebound"}`, got)
}
