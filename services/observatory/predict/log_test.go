// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package predict

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// advanceableLog returns a log whose clock the test controls.
func advanceableLog(opts *LogOptions) (*Log, *time.Time) {
	l := NewLog(opts)
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheck_HitOncePerEntry(t *testing.T) {
	l := NewLog(nil)
	l.Add("sess", []string{"/repo/a.py", "/repo/b.py"}, nil, "", 0.8)

	assert.Equal(t, 1, l.Check("sess", "/repo/a.py"))
	// Replay is idempotent.
	assert.Equal(t, 0, l.Check("sess", "/repo/a.py"))
	assert.Equal(t, 1, l.Check("sess", "/repo/b.py"))
}

func TestCheck_StripsLineRanges(t *testing.T) {
	l := NewLog(nil)
	l.Add("sess", []string{"/repo/a.py"}, nil, "", 0.8)

	assert.Equal(t, 1, l.Check("sess", "/repo/a.py:10-50"))
}

func TestCheck_SessionScoped(t *testing.T) {
	l := NewLog(nil)
	l.Add("sess-1", []string{"/repo/a.py"}, nil, "", 0.8)

	assert.Equal(t, 0, l.Check("sess-2", "/repo/a.py"))
	assert.Equal(t, 1, l.Check("sess-1", "/repo/a.py"))
}

func TestCheck_ExpiredEntriesDoNotMatch(t *testing.T) {
	l, now := advanceableLog(nil)
	l.Add("sess", []string{"/repo/a.py"}, nil, "", 0.8)

	*now = now.Add(DefaultTTL + time.Minute)
	assert.Equal(t, 0, l.Check("sess", "/repo/a.py"))
}

func TestSweep_EvaluatesExpiredIntoWindow(t *testing.T) {
	l, now := advanceableLog(nil)

	l.Add("sess", []string{"/repo/hit.py"}, nil, "", 0.9)
	l.Check("sess", "/repo/hit.py")
	l.Add("sess", []string{"/repo/miss.py"}, nil, "", 0.9)
	l.Add("sess", []string{"/repo/miss2.py"}, nil, "", 0.9)

	*now = now.Add(DefaultTTL + time.Minute)
	l.Sweep()

	assert.Equal(t, 0, l.Outstanding())
	m := l.Snapshot()
	assert.False(t, m.Calibrating)
	assert.Equal(t, 3, m.Evaluated)
	assert.InDelta(t, 1.0/3.0, m.HitAt5Pct, 1e-9)
}

func TestSnapshot_CalibratingBelowThreshold(t *testing.T) {
	l, now := advanceableLog(nil)
	l.Add("sess", []string{"/repo/a.py"}, nil, "", 0.9)
	l.Add("sess", []string{"/repo/b.py"}, nil, "", 0.9)

	*now = now.Add(DefaultTTL + time.Minute)
	l.Sweep()

	m := l.Snapshot()
	assert.True(t, m.Calibrating)
	assert.Equal(t, 2, m.Evaluated)
	assert.Equal(t, 0.0, m.HitAt5Pct)
}

func TestEvaluate_HitBeyondTopFiveDoesNotCount(t *testing.T) {
	l, now := advanceableLog(nil)

	predicted := make([]string, 7)
	for i := range predicted {
		predicted[i] = fmt.Sprintf("/repo/f%d.py", i)
	}
	l.Add("sess", predicted, nil, "", 0.9)
	// Only the 7th prediction was accessed.
	l.Check("sess", "/repo/f6.py")

	*now = now.Add(DefaultTTL + time.Minute)
	l.Sweep()
	l.Add("sess", []string{"/x.py"}, nil, "", 0.9)
	l.Add("sess", []string{"/y.py"}, nil, "", 0.9)
	*now = now.Add(DefaultTTL + time.Minute)
	l.Sweep()

	m := l.Snapshot()
	assert.Equal(t, 3, m.Evaluated)
	assert.Equal(t, 0.0, m.HitAt5Pct)
}

func TestAdd_EnforcesHardCeiling(t *testing.T) {
	l := NewLog(&LogOptions{MaxEntries: 10})

	for i := 0; i < 25; i++ {
		l.Add("sess", []string{fmt.Sprintf("/repo/f%d.py", i)}, nil, "", 0.5)
	}

	assert.Equal(t, 10, l.Outstanding())
	// Evicted entries were evaluated, not dropped.
	assert.Equal(t, 15, l.Snapshot().Evaluated)
}

func TestFlush_EvaluatesOutstanding(t *testing.T) {
	l := NewLog(nil)
	l.Add("sess", []string{"/repo/a.py"}, nil, "", 0.5)
	l.Check("sess", "/repo/a.py")
	l.Add("sess", []string{"/repo/b.py"}, nil, "", 0.5)
	l.Add("sess", []string{"/repo/c.py"}, nil, "", 0.5)

	l.Flush()

	require.Equal(t, 0, l.Outstanding())
	m := l.Snapshot()
	assert.Equal(t, 3, m.Evaluated)
	assert.InDelta(t, 1.0/3.0, m.HitAt5Pct, 1e-9)
}

func TestWindow_SlidesAtCapacity(t *testing.T) {
	l := NewLog(&LogOptions{WindowSize: 5})

	// 5 misses, then 5 hits; the window must hold only the hits.
	for i := 0; i < 5; i++ {
		l.Add("sess", []string{fmt.Sprintf("/m%d.py", i)}, nil, "", 0.5)
	}
	l.Flush()
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/h%d.py", i)
		l.Add("sess", []string{path}, nil, "", 0.5)
		l.Check("sess", path)
	}
	l.Flush()

	m := l.Snapshot()
	assert.Equal(t, 5, m.Evaluated)
	assert.Equal(t, 1.0, m.HitAt5Pct)
}
