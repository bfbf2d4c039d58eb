package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewLineTransitions(t *testing.T) {
	p := Point{X: 10, Y: 20}
	tests := []struct {
		name      string
		initial   DragState
		op        func(l *PreviewLine) error
		wantErr   error
		wantState DragState
	}{
		{"begin drag from free", DragStateFree, (*PreviewLine).BeginDrag, nil, DragStateDragging},
		{"begin drag while dragging", DragStateDragging, (*PreviewLine).BeginDrag, ErrInvalidTransition, DragStateDragging},
		{"begin drag from connected", DragStateConnected, (*PreviewLine).BeginDrag, ErrInvalidTransition, DragStateConnected},
		{"move while dragging", DragStateDragging, func(l *PreviewLine) error { return l.MoveTo(p) }, nil, DragStateDragging},
		{"move while free", DragStateFree, func(l *PreviewLine) error { return l.MoveTo(p) }, ErrInvalidTransition, DragStateFree},
		{"release while dragging", DragStateDragging, func(l *PreviewLine) error { return l.Release(p) }, nil, DragStateFree},
		{"connect while dragging", DragStateDragging, func(l *PreviewLine) error { return l.Connect("n2", "in") }, nil, DragStateConnected},
		{"connect while free", DragStateFree, func(l *PreviewLine) error { return l.Connect("n2", "in") }, ErrInvalidTransition, DragStateFree},
		{"detach connected", DragStateConnected, func(l *PreviewLine) error { return l.Detach(p) }, nil, DragStateFree},
		{"detach free", DragStateFree, func(l *PreviewLine) error { return l.Detach(p) }, ErrInvalidTransition, DragStateFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &PreviewLine{ID: "l1", State: tt.initial, Endpoint: FreeEndpoint(Point{})}
			err := tt.op(l)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, l.State)
		})
	}
}

func TestPreviewLineReleaseMarksAdjusted(t *testing.T) {
	l := &PreviewLine{ID: "l1", State: DragStateFree}
	require.NoError(t, l.BeginDrag())
	require.NoError(t, l.Release(Point{X: 5, Y: 6}))
	got, ok := l.FreePoint()
	require.True(t, ok)
	assert.Equal(t, Point{X: 5, Y: 6}, got)
	assert.True(t, l.ManuallyAdjusted)
}

func TestPreviewLineConnectBindsEndpoint(t *testing.T) {
	l := &PreviewLine{ID: "l1", State: DragStateFree}
	require.NoError(t, l.BeginDrag())
	require.NoError(t, l.Connect("target", PortGroupIn))
	_, ok := l.FreePoint()
	assert.False(t, ok)
	assert.Equal(t, "target", l.Endpoint.CellID)
	assert.Equal(t, "hint_l1", l.HintNodeID())
}
