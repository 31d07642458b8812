// Package client is a Go synchronization adapter for the board gateway: a
// live connection, an optimistic local mirror of image positions and the
// rollback machinery for rejected moves.
package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/driftlab/boardroom/internal/models"
)

type positionField string

const (
	fieldX        positionField = "x"
	fieldY        positionField = "y"
	fieldWidth    positionField = "width"
	fieldHeight   positionField = "height"
	fieldZIndex   positionField = "zIndex"
	fieldRotation positionField = "rotation"
)

type mirrorEntry struct {
	current   models.Position
	confirmed models.Position
	inflight  map[positionField]int
}

type pendingMove struct {
	imageID uuid.UUID
	applied map[positionField]float64
}

// Mirror is the client-side view of a board's image positions. Local moves
// apply immediately and are tracked per field until the server accepts or
// rejects them; remote canonical updates merge field-level and never clobber
// a field the user is still dragging.
type Mirror struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*mirrorEntry
	pending map[string]*pendingMove
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		entries: make(map[uuid.UUID]*mirrorEntry),
		pending: make(map[string]*pendingMove),
	}
}

// Seed loads the authoritative image list, e.g. from the REST board fetch.
// Existing optimistic state for seeded images is discarded.
func (m *Mirror) Seed(images []*models.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, img := range images {
		m.entries[img.ID] = &mirrorEntry{
			current:   img.Position,
			confirmed: img.Position,
			inflight:  make(map[positionField]int),
		}
	}
}

// Position returns the current (optimistic) position of an image.
func (m *Mirror) Position(imageID uuid.UUID) (models.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[imageID]
	if !ok {
		return models.Position{}, false
	}
	return entry.current, true
}

// Apply records an optimistic move under requestID. The patch is applied to
// the current view immediately; each touched field stays in flight until
// Confirm or Rollback resolves the request.
func (m *Mirror) Apply(requestID string, imageID uuid.UUID, patch models.PositionPatch) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[imageID]
	if !ok {
		return false
	}

	patch.Apply(&entry.current)

	applied := make(map[positionField]float64)
	for _, field := range patchFields(patch) {
		applied[field] = getField(entry.current, field)
		entry.inflight[field]++
	}
	m.pending[requestID] = &pendingMove{imageID: imageID, applied: applied}
	return true
}

// Confirm resolves a request as accepted: its values become the confirmed
// baseline for the touched fields.
func (m *Mirror) Confirm(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	move, ok := m.pending[requestID]
	if !ok {
		return
	}
	delete(m.pending, requestID)

	entry, ok := m.entries[move.imageID]
	if !ok {
		return
	}
	for field, value := range move.applied {
		setField(&entry.confirmed, field, value)
		entry.inflight[field]--
	}
}

// Rollback resolves a request as rejected: each touched field reverts to the
// confirmed value, unless a newer optimistic move still has it in flight.
func (m *Mirror) Rollback(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	move, ok := m.pending[requestID]
	if !ok {
		return
	}
	delete(m.pending, requestID)

	entry, ok := m.entries[move.imageID]
	if !ok {
		return
	}
	for field := range move.applied {
		entry.inflight[field]--
		if entry.inflight[field] == 0 {
			setField(&entry.current, field, getField(entry.confirmed, field))
		}
	}
}

// ApplyRemote merges a server-confirmed canonical position. Fields with an
// optimistic move still in flight keep their local value; everything else
// follows the server.
func (m *Mirror) ApplyRemote(imageID uuid.UUID, pos models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[imageID]
	if !ok {
		entry = &mirrorEntry{current: pos, confirmed: pos, inflight: make(map[positionField]int)}
		m.entries[imageID] = entry
		return
	}

	entry.confirmed = pos
	for _, field := range allFields {
		if entry.inflight[field] > 0 {
			continue
		}
		setField(&entry.current, field, getField(pos, field))
	}
}

// Remove drops an image (remote delete) along with its pending state.
func (m *Mirror) Remove(imageID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, imageID)
	for id, move := range m.pending {
		if move.imageID == imageID {
			delete(m.pending, id)
		}
	}
}

// Len reports how many images the mirror tracks.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var allFields = []positionField{fieldX, fieldY, fieldWidth, fieldHeight, fieldZIndex, fieldRotation}

func patchFields(patch models.PositionPatch) []positionField {
	var fields []positionField
	if patch.X != nil {
		fields = append(fields, fieldX)
	}
	if patch.Y != nil {
		fields = append(fields, fieldY)
	}
	if patch.Width != nil {
		fields = append(fields, fieldWidth)
	}
	if patch.Height != nil {
		fields = append(fields, fieldHeight)
	}
	if patch.ZIndex != nil {
		fields = append(fields, fieldZIndex)
	}
	if patch.Rotation != nil {
		fields = append(fields, fieldRotation)
	}
	return fields
}

func getField(pos models.Position, field positionField) float64 {
	switch field {
	case fieldX:
		return pos.X
	case fieldY:
		return pos.Y
	case fieldWidth:
		return pos.Width
	case fieldHeight:
		return pos.Height
	case fieldZIndex:
		return pos.ZIndex
	case fieldRotation:
		return pos.Rotation
	}
	return 0
}

func setField(pos *models.Position, field positionField, value float64) {
	switch field {
	case fieldX:
		pos.X = value
	case fieldY:
		pos.Y = value
	case fieldWidth:
		pos.Width = value
	case fieldHeight:
		pos.Height = value
	case fieldZIndex:
		pos.ZIndex = value
	case fieldRotation:
		pos.Rotation = value
	}
}
