package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdjustSet(t *testing.T) {
	got, err := Adjust(5, OpSet, 42, true)
	require.NoError(t, err)
	require.Equal(t, 42, got)

	// set is unconditional, even to zero
	got, err = Adjust(100, OpSet, 0, true)
	require.NoError(t, err)
	require.Equal(t, 0, got)
}

func TestAdjustAdd(t *testing.T) {
	got, err := Adjust(5, OpAdd, 3, true)
	require.NoError(t, err)
	require.Equal(t, 8, got)
}

func TestAdjustSubtract(t *testing.T) {
	got, err := Adjust(10, OpSubtract, 4, true)
	require.NoError(t, err)
	require.Equal(t, 6, got)
}

func TestAdjustSubtractInsufficientTracked(t *testing.T) {
	_, err := Adjust(5, OpSubtract, 10, true)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAdjustSubtractUntrackedGoesNegative(t *testing.T) {
	got, err := Adjust(5, OpSubtract, 10, false)
	require.NoError(t, err)
	require.Equal(t, -5, got)
}

func TestAdjustRejectsUnknownOpAndNegativeQty(t *testing.T) {
	_, err := Adjust(5, Op("multiply"), 2, true)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Adjust(5, OpAdd, -1, true)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNextStatusTransitions(t *testing.T) {
	cases := []struct {
		name      string
		prev      Status
		stock     int
		threshold int
		want      Status
	}{
		{"zero stock", StatusActive, 0, 5, StatusOutOfStock},
		{"at threshold", StatusActive, 5, 5, StatusLowStock},
		{"below threshold", StatusActive, 1, 5, StatusLowStock},
		{"recover from low", StatusLowStock, 20, 5, StatusActive},
		{"recover from out", StatusOutOfStock, 20, 5, StatusActive},
		{"healthy stays put", StatusActive, 20, 5, StatusActive},
		{"inactive never promoted", StatusInactive, 20, 5, StatusInactive},
		{"discontinued never promoted", StatusDiscontinued, 20, 5, StatusDiscontinued},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextStatus(tc.prev, tc.stock, tc.threshold))
		})
	}
}
