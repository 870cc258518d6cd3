package seathold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSeatNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "重複と空白を除去", in: []string{" A1", "A2", "A1 ", ""}, want: []string{"A1", "A2"}},
		{name: "空", in: nil, want: []string{}},
		{name: "順序を保持", in: []string{"B3", "A1"}, want: []string{"B3", "A1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSeatNames(tt.in))
		})
	}
}

func TestParseSeatNames(t *testing.T) {
	assert.Equal(t, []string{"A1", "A2"}, ParseSeatNames("A1, A2,,A1"))
	assert.Empty(t, ParseSeatNames(" , "))
}

func TestSeatHold_Lifecycle(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := New("code-1", 1, "S1", []string{"A1", "A2"}, ClientMeta{IP: "127.0.0.1"}, now, DefaultWindow)

	assert.Equal(t, now.Add(30*time.Minute), h.ExpireAt)
	assert.Equal(t, "A1,A2", h.Joined())
	assert.True(t, h.IsActive(now))
	assert.True(t, h.Covers(1, "S1"))
	assert.False(t, h.Covers(1, "S2"))

	t.Run("有効期限で失効する", func(t *testing.T) {
		assert.False(t, h.IsActive(now.Add(30*time.Minute)))
	})

	t.Run("更新で座席を置き換えて延長", func(t *testing.T) {
		later := now.Add(10 * time.Minute)
		require.NoError(t, h.Renew([]string{"A3"}, ClientMeta{}, later, DefaultWindow))
		assert.Equal(t, []string{"A3"}, h.SeatNames)
		assert.Equal(t, later.Add(DefaultWindow), h.ExpireAt)
	})

	t.Run("解放後は更新できない", func(t *testing.T) {
		h.Close(now.Add(11 * time.Minute))
		closedAt := *h.ClosedAt
		h.Close(now.Add(20 * time.Minute))

		assert.Equal(t, closedAt, *h.ClosedAt)
		assert.False(t, h.IsActive(now.Add(12*time.Minute)))
		assert.ErrorIs(t, h.Renew([]string{"A1"}, ClientMeta{}, now.Add(12*time.Minute), DefaultWindow), ErrHoldNotActive)
	})
}

func TestConflictingSeats(t *testing.T) {
	now := time.Now()
	holds := []*SeatHold{
		New("x", 1, "S1", []string{"A2", "A3"}, ClientMeta{}, now, time.Minute),
		New("y", 1, "S1", []string{"A3", "A1"}, ClientMeta{}, now, 2*time.Minute),
	}

	got := ConflictingSeats(holds, []string{"A1", "A3", "A9"})

	assert.Equal(t, []string{"A3", "A1"}, got)
	assert.Empty(t, ConflictingSeats(nil, []string{"A1"}))
}
