package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"bookhive/internal/apperr"
)

func window(t *testing.T, start, end string) Window {
	t.Helper()
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	endAt, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return Window{StartAt: startAt, EndAt: endAt}
}

func TestWindowOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Window
		b    Window
		want bool
	}{
		{
			name: "partial overlap",
			a:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			b:    window(t, "2026-09-01T10:30:00Z", "2026-09-01T11:30:00Z"),
			want: true,
		},
		{
			name: "back to back does not overlap",
			a:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			b:    window(t, "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z"),
			want: false,
		},
		{
			name: "identical windows overlap",
			a:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			b:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			want: true,
		},
		{
			name: "containment overlaps",
			a:    window(t, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z"),
			b:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			want: true,
		},
		{
			name: "disjoint windows",
			a:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			b:    window(t, "2026-09-01T14:00:00Z", "2026-09-01T15:00:00Z"),
			want: false,
		},
		{
			name: "one minute of shared time",
			a:    window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"),
			b:    window(t, "2026-09-01T10:59:00Z", "2026-09-01T12:00:00Z"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestWindowValidate(t *testing.T) {
	valid := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")
	assert.NoError(t, valid.Validate())

	inverted := window(t, "2026-09-01T11:00:00Z", "2026-09-01T10:00:00Z")
	assert.True(t, errors.Is(inverted.Validate(), apperr.ErrInvalid))

	empty := window(t, "2026-09-01T10:00:00Z", "2026-09-01T10:00:00Z")
	assert.True(t, errors.Is(empty.Validate(), apperr.ErrInvalid), "zero-length window is invalid")

	var zero Window
	assert.True(t, errors.Is(zero.Validate(), apperr.ErrInvalid))
}

func TestWindowOverlapsProperties(t *testing.T) {
	base := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	drawWindow := func(t *rapid.T, label string) Window {
		start := rapid.Int64Range(0, 10_000).Draw(t, label+"_start")
		length := rapid.Int64Range(1, 1_000).Draw(t, label+"_len")
		return Window{
			StartAt: base.Add(time.Duration(start) * time.Minute),
			EndAt:   base.Add(time.Duration(start+length) * time.Minute),
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		a := drawWindow(t, "a")
		b := drawWindow(t, "b")

		if a.Overlaps(b) != b.Overlaps(a) {
			t.Fatalf("overlap not symmetric: %+v vs %+v", a, b)
		}

		if !a.Overlaps(a) {
			t.Fatalf("window must overlap itself: %+v", a)
		}

		// A window starting exactly where another ends shares no instant.
		adjacent := Window{StartAt: a.EndAt, EndAt: a.EndAt.Add(time.Hour)}
		if a.Overlaps(adjacent) {
			t.Fatalf("back-to-back windows must not overlap: %+v then %+v", a, adjacent)
		}

		// Overlap requires shared time: disjoint windows report false.
		if !a.Overlaps(b) {
			disjoint := a.EndAt.Compare(b.StartAt) <= 0 || b.EndAt.Compare(a.StartAt) <= 0
			if !disjoint {
				t.Fatalf("windows share time but Overlaps is false: %+v vs %+v", a, b)
			}
		}
	})
}
