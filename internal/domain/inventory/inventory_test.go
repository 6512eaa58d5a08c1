package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustment_Delta(t *testing.T) {
	assert.Equal(t, int64(5), Adjustment{ProductID: "p1", Magnitude: 5, Direction: Increment}.Delta())
	assert.Equal(t, int64(-3), Adjustment{ProductID: "p1", Magnitude: 3, Direction: Reduce}.Delta())
	assert.Equal(t, int64(0), Adjustment{ProductID: "p1", Magnitude: 0, Direction: Reduce}.Delta())
}

func TestAdjustment_Validate(t *testing.T) {
	cases := []struct {
		name string
		adj  Adjustment
		err  error
	}{
		{"ok", Adjustment{ProductID: "p1", Magnitude: 1, Direction: Reduce}, nil},
		{"zero magnitude", Adjustment{ProductID: "p1", Direction: Increment}, nil},
		{"missing id", Adjustment{Magnitude: 1, Direction: Reduce}, ErrMissingProduct},
		{"negative", Adjustment{ProductID: "p1", Magnitude: -1, Direction: Reduce}, ErrInvalidMagnitude},
		{"direction", Adjustment{ProductID: "p1", Magnitude: 1, Direction: "DOUBLE"}, ErrInvalidDirection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.adj.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.err))
		})
	}
}

func TestParseFloorPolicy(t *testing.T) {
	p, err := ParseFloorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FloorAllow, p)

	p, err = ParseFloorPolicy("Clamp")
	require.NoError(t, err)
	assert.Equal(t, FloorClamp, p)

	_, err = ParseFloorPolicy("never")
	assert.True(t, errors.Is(err, ErrInvalidPolicy))
}
