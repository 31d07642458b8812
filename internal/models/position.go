package models

import (
	"fmt"
	"math"
)

// Position is the server-held canonical placement of an image on a board:
// x/y offset, size, paint order and rotation. All fields are always
// well-defined; DefaultPosition supplies the values for images created
// without explicit placement.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ZIndex   float64 `json:"zIndex"`
	Rotation float64 `json:"rotation"`
}

// DefaultPosition returns the placement applied to images that are created
// without one.
func DefaultPosition() Position {
	return Position{
		X:        0,
		Y:        0,
		Width:    300,
		Height:   200,
		ZIndex:   1,
		Rotation: 0,
	}
}

// PositionPatch is a partial position update. Nil fields are left untouched
// by Apply, which is what makes concurrent moves compose per field rather
// than clobbering whole records.
type PositionPatch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	ZIndex   *float64 `json:"zIndex,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// IsEmpty reports whether the patch sets no fields at all.
func (p PositionPatch) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil &&
		p.Height == nil && p.ZIndex == nil && p.Rotation == nil
}

// Validate rejects patches containing non-finite numbers. It runs before any
// merge so a bad patch is never partially applied.
func (p PositionPatch) Validate() error {
	fields := map[string]*float64{
		"x":        p.X,
		"y":        p.Y,
		"width":    p.Width,
		"height":   p.Height,
		"zIndex":   p.ZIndex,
		"rotation": p.Rotation,
	}
	for name, v := range fields {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return fmt.Errorf("%w: position field %q is not finite", ErrValidation, name)
		}
	}
	return nil
}

// Apply merges the patch onto pos, field by field, last write wins.
func (p PositionPatch) Apply(pos *Position) {
	if p.X != nil {
		pos.X = *p.X
	}
	if p.Y != nil {
		pos.Y = *p.Y
	}
	if p.Width != nil {
		pos.Width = *p.Width
	}
	if p.Height != nil {
		pos.Height = *p.Height
	}
	if p.ZIndex != nil {
		pos.ZIndex = *p.ZIndex
	}
	if p.Rotation != nil {
		pos.Rotation = *p.Rotation
	}
}
