package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTab(t *testing.T) {
	tab, err := ParseTab(" Accepted ")
	require.NoError(t, err)
	assert.Equal(t, TabAccepted, tab)

	_, err = ParseTab("leads")
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestTabTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Tab
		to   Tab
		ok   bool
	}{
		{"new to accepted", TabNew, TabAccepted, true},
		{"new to marketplace", TabNew, TabMarketplace, true},
		{"new stays new", TabNew, TabNew, true},
		{"accepted to rejected", TabAccepted, TabRejected, true},
		{"uncertain to accepted", TabUncertain, TabAccepted, true},
		{"accepted back to new", TabAccepted, TabNew, false},
		{"marketplace back to new", TabMarketplace, TabNew, false},
		{"unknown target", TabNew, Tab("leads"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.from.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, next)
			}
		})
	}
}
