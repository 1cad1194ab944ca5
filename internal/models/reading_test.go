package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		present bool
		wantErr bool
	}{
		{name: "number", raw: "21.5", want: 21.5, present: true},
		{name: "negative", raw: " -3 ", want: -3, present: true},
		{name: "numeric string", raw: `"19.25"`, want: 19.25, present: true},
		{name: "null is absent", raw: "null", present: false},
		{name: "empty is absent", raw: "", present: false},
		{name: "zero is a reading", raw: "0", want: 0, present: true},
		{name: "text", raw: "hot", wantErr: true},
		{name: "non numeric string", raw: `"warm"`, wantErr: true},
		{name: "object", raw: `{"value":1}`, wantErr: true},
		{name: "bool", raw: "true", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, present, err := ParseReading([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidReading))
				assert.False(t, present)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, present)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReading_RejectsNonFiniteStrings(t *testing.T) {
	_, _, err := ParseReading([]byte(`"NaN"`))
	assert.ErrorIs(t, err, ErrInvalidReading)

	_, _, err = ParseReading([]byte(`"+Inf"`))
	assert.ErrorIs(t, err, ErrInvalidReading)
}

func TestSnapshot_IsEmpty(t *testing.T) {
	var nilSnap *Snapshot
	assert.True(t, nilSnap.IsEmpty())
	assert.True(t, EmptySnapshot().IsEmpty())

	snap := EmptySnapshot()
	snap.PredictedTemp = Float64Ptr(20)
	assert.False(t, snap.IsEmpty())
}
