package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestMergeOps(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Operation
		want       Operation
		keep       bool
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate, true},
		{"create then delete cancels", OpCreate, OpDelete, 0, false},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete, true},
		{"delete then create is modify", OpDelete, OpCreate, OpModify, true},
		{"modify then modify is modify", OpModify, OpModify, OpModify, true},
		{"rename keeps latest", OpRename, OpCreate, OpCreate, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := mergeOps(tt.prev, tt.next)
			assert.Equal(t, tt.keep, keep)
			if tt.keep {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(20*time.Millisecond, logging.Discard())
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "test.go", Operation: OpCreate, Timestamp: time.Now()})

	// Then: it passes through after the window
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "test.go", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_BurstForSameFile_Coalesces(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, logging.Discard())
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "test.go", Operation: OpModify, Timestamp: time.Now()})
	}

	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncer_CreateThenDelete_EmitsNothing(t *testing.T) {
	d := NewDebouncer(time.Hour, logging.Discard())
	defer d.Stop()

	d.Add(FileEvent{Path: "temp.go", Operation: OpCreate})
	d.Add(FileEvent{Path: "temp.go", Operation: OpDelete})
	assert.Equal(t, 0, d.Pending())

	d.Flush()
	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch %v", events)
	default:
	}
}

func TestDebouncer_BatchIsSortedByPath(t *testing.T) {
	// Given: events for three files added out of order
	d := NewDebouncer(time.Hour, logging.Discard())
	defer d.Stop()
	d.Add(FileEvent{Path: "c.go", Operation: OpDelete})
	d.Add(FileEvent{Path: "a.go", Operation: OpCreate})
	d.Add(FileEvent{Path: "b.go", Operation: OpModify})

	// When: flushed
	d.Flush()

	// Then: one batch in path order
	events := receive(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"a.go", "b.go", "c.go"},
		[]string{events[0].Path, events[1].Path, events[2].Path})
	assert.Equal(t, OpDelete, events[2].Operation)
}

func TestDebouncer_DeleteThenCreate_EmitsModify(t *testing.T) {
	d := NewDebouncer(time.Hour, logging.Discard())
	defer d.Stop()

	d.Add(FileEvent{Path: "replaced.go", Operation: OpDelete})
	d.Add(FileEvent{Path: "replaced.go", Operation: OpCreate})
	d.Flush()

	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncer_Stop_ClosesOutputAndIgnoresAdds(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, logging.Discard())

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "late.go", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, d.Pending())
}
