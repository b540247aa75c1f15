package engine

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(totalZones int) (*Ledger, *recordingUI, *clock.Mock) {
	ui := &recordingUI{}
	clk := clock.NewMock()
	l := NewLedger(LedgerConfig{
		TotalZones: totalZones,
		XPPerZone:  25,
		Messages:   DefaultGameConfig().Messages,
	}, ui, clk, zerolog.Nop())
	return l, ui, clk
}

func TestLedger_ExperienceStaysInRange(t *testing.T) {
	l, _, _ := newTestLedger(5)
	rng := rand.New(rand.NewSource(42))

	prevLevel := l.Level()
	for i := 0; i < 500; i++ {
		amount := rng.Intn(60) - 10
		_, err := l.AddExperience(amount)
		if amount < 0 {
			assert.ErrorIs(t, err, ErrNegativeExperience)
		} else {
			assert.NoError(t, err)
		}

		xp := l.XP()
		require.GreaterOrEqual(t, xp, 0)
		require.LessOrEqual(t, xp, l.MaxXP())
		require.Equal(t, xp/25+1, l.Level())
		require.GreaterOrEqual(t, l.Level(), prevLevel)
		prevLevel = l.Level()
	}
	assert.Equal(t, 125, l.XP())
	assert.Equal(t, 6, l.Level())
}

func TestLedger_LevelUpToast(t *testing.T) {
	l, ui, _ := newTestLedger(5)

	xp, err := l.AddExperience(10)
	require.NoError(t, err)
	assert.Equal(t, 10, xp)
	assert.Empty(t, ui.toastTitles())

	_, err = l.AddExperience(40)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Level())
	require.Len(t, ui.toasts, 1)
	assert.Equal(t, "LEVEL UP!", ui.toasts[0].Title)
	assert.Equal(t, "You reached level 3", ui.toasts[0].Message)
	assert.Equal(t, ToastSuccess, ui.toasts[0].Kind)

	assert.Equal(t, [][2]int{{10, 125}, {50, 125}}, ui.progress)
}

func TestLedger_DisabledIgnoresExperience(t *testing.T) {
	l := NewLedger(LedgerConfig{TotalZones: 2, XPPerZone: 25, Disabled: true}, nil, clock.NewMock(), zerolog.Nop())
	xp, err := l.AddExperience(25)
	require.NoError(t, err)
	assert.Equal(t, 0, xp)
	assert.Equal(t, 1, l.Level())
}

func TestLedger_MarkVisitedOncePerID(t *testing.T) {
	l, _, _ := newTestLedger(5)

	assert.True(t, l.MarkVisited("a"))
	assert.False(t, l.MarkVisited("a"))
	assert.False(t, l.MarkVisited("a"))
	assert.True(t, l.MarkVisited("b"))
	assert.Equal(t, []string{"a", "b"}, l.Snapshot().VisitedZoneIDs)
}

// With five zones, visiting four leaves completion false; the fifth flips it.
func TestLedger_CompletionFlipsOnce(t *testing.T) {
	l, ui, _ := newTestLedger(5)

	for i := 1; i <= 4; i++ {
		require.True(t, l.MarkVisited(fmt.Sprintf("zone-%d", i)))
		assert.False(t, l.Completed())
	}
	require.True(t, l.MarkVisited("zone-5"))
	assert.True(t, l.Completed())
	assert.Equal(t, 100, l.CompletionPercentage())

	assert.False(t, l.MarkVisited("zone-5"))
	assert.False(t, l.MarkVisited("zone-6"), "visits beyond the total are ignored")
	assert.Len(t, l.Snapshot().VisitedZoneIDs, 5)

	count := 0
	for _, title := range ui.toastTitles() {
		if title == "EXPLORATION COMPLETE!" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLedger_ResetClearsEverything(t *testing.T) {
	l, _, clk := newTestLedger(2)
	l.MarkVisited("a")
	l.MarkVisited("b")
	_, _ = l.AddExperience(50)
	l.SetCurrentZone("b")
	clk.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, l.PlayTime())

	l.Reset()

	snap := l.Snapshot()
	assert.Equal(t, ProgressSnapshot{XP: 0, Level: 1, VisitedZoneIDs: []string{}, Completed: false}, snap)
	assert.Equal(t, "", l.CurrentZone())
	assert.Equal(t, time.Duration(0), l.PlayTime())
	assert.True(t, l.MarkVisited("a"))
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l, _, _ := newTestLedger(3)
	l.MarkVisited("a")
	_, _ = l.AddExperience(25)
	snap := l.Snapshot()

	other, ui, _ := newTestLedger(3)
	require.NoError(t, other.Restore(snap))
	assert.Equal(t, snap, other.Snapshot())
	assert.False(t, other.MarkVisited("a"))
	assert.Empty(t, ui.toastTitles(), "restoring shows no toasts")
}

func TestLedger_RestoreRejectsInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap ProgressSnapshot
	}{
		{"xp above max", ProgressSnapshot{XP: 500, Level: 21}},
		{"negative xp", ProgressSnapshot{XP: -1, Level: 1}},
		{"level mismatch", ProgressSnapshot{XP: 25, Level: 1}},
		{"too many zones", ProgressSnapshot{XP: 0, Level: 1, VisitedZoneIDs: []string{"a", "b", "c", "d"}}},
		{"duplicate zone", ProgressSnapshot{XP: 0, Level: 1, VisitedZoneIDs: []string{"a", "a"}}},
		{"completed too early", ProgressSnapshot{XP: 0, Level: 1, VisitedZoneIDs: []string{"a"}, Completed: true}},
		{"completion missing", ProgressSnapshot{XP: 0, Level: 1, VisitedZoneIDs: []string{"a", "b", "c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newTestLedger(3)
			l.MarkVisited("x")
			err := l.Restore(tt.snap)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			assert.True(t, l.Visited("x"), "ledger untouched on error")
		})
	}
}

func TestLedger_View(t *testing.T) {
	l, _, clk := newTestLedger(4)
	l.MarkVisited("b")
	l.MarkVisited("a")
	l.SetCurrentZone("a")
	clk.Add(5 * time.Second)

	v := l.View()
	assert.Equal(t, 100, v.MaxXP)
	assert.Equal(t, 4, v.TotalZones)
	assert.Equal(t, 50, v.CompletionPercent)
	assert.Equal(t, "a", v.CurrentZone)
	assert.Equal(t, 5.0, v.PlayTimeSeconds)
	assert.Equal(t, []string{"a", "b"}, l.VisitedIDs())
}
