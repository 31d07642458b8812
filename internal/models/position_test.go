package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPosition(t *testing.T) {
	pos := DefaultPosition()
	assert.Equal(t, Position{X: 0, Y: 0, Width: 300, Height: 200, ZIndex: 1, Rotation: 0}, pos)
}

func TestPatchApplyMergesOnlySetFields(t *testing.T) {
	pos := DefaultPosition()
	x, rot := 42.0, 90.0

	PositionPatch{X: &x, Rotation: &rot}.Apply(&pos)

	assert.Equal(t, 42.0, pos.X)
	assert.Equal(t, 90.0, pos.Rotation)
	assert.Equal(t, 300.0, pos.Width)
	assert.Equal(t, 1.0, pos.ZIndex)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, PositionPatch{}.IsEmpty())
	x := 1.0
	assert.False(t, PositionPatch{X: &x}.IsEmpty())
}

func TestPatchValidateRejectsNonFinite(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	neg := math.Inf(-1)

	assert.ErrorIs(t, PositionPatch{X: &nan}.Validate(), ErrValidation)
	assert.ErrorIs(t, PositionPatch{Height: &inf}.Validate(), ErrValidation)
	assert.ErrorIs(t, PositionPatch{Rotation: &neg}.Validate(), ErrValidation)

	ok := 15.5
	assert.NoError(t, PositionPatch{Y: &ok}.Validate())
	assert.NoError(t, PositionPatch{}.Validate())
}

func TestPatchDecodeDistinguishesAbsentFromZero(t *testing.T) {
	var patch PositionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"x": 0}`), &patch))

	require.NotNil(t, patch.X)
	assert.Equal(t, 0.0, *patch.X)
	assert.Nil(t, patch.Y, "absent field stays nil so merges cannot clobber it")
}
