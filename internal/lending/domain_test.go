package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookhive/internal/points"
)

func TestReturnReward(t *testing.T) {
	dueAt := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		returnedAt time.Time
		wantDelta  int
		wantReason string
	}{
		{"well before due", dueAt.Add(-48 * time.Hour), points.ReturnOnTimePoints, points.ReasonReturnOnTime},
		{"exactly at due", dueAt, points.ReturnOnTimePoints, points.ReasonReturnOnTime},
		{"one second late", dueAt.Add(time.Second), points.ReturnLatePoints, points.ReasonReturnLate},
		{"days late", dueAt.Add(72 * time.Hour), points.ReturnLatePoints, points.ReasonReturnLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, reason := returnReward(tt.returnedAt, dueAt)
			assert.Equal(t, tt.wantDelta, delta)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestBorrowIsLate(t *testing.T) {
	borrow := &Borrow{DueAt: time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)}

	assert.False(t, borrow.IsLate(borrow.DueAt.Add(-time.Hour)))
	assert.False(t, borrow.IsLate(borrow.DueAt), "the due instant itself is on time")
	assert.True(t, borrow.IsLate(borrow.DueAt.Add(time.Minute)))
}
