package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	p := New()

	s1 := p.Append("read_file", map[string]any{"path": "a.txt"})
	s2 := p.Append("shell", map[string]any{"command": "ls"})

	assert.Equal(t, 1, s1.ID)
	assert.Equal(t, 2, s2.ID)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, StatusPending, s1.Status)
	assert.Same(t, s2, p.Last())
}

func TestStepLifecycle(t *testing.T) {
	p := New()

	s := p.Append("shell", map[string]any{"command": "pwd"})
	s.Start()
	assert.Equal(t, StatusRunning, s.Status)
	assert.False(t, s.StartedAt.IsZero())

	s.Succeed("/home/user")
	assert.Equal(t, StatusSucceeded, s.Status)
	assert.Equal(t, "/home/user", s.Output)

	f := p.Append("shell", map[string]any{"command": "boom"})
	f.Start()
	f.Fail(errors.New("exit status 1"))
	assert.Equal(t, StatusFailed, f.Status)
	assert.Equal(t, "exit status 1", f.Error)

	assert.Equal(t, 1, p.Failures())
	assert.Same(t, s, p.LastSuccess())
}

func TestLastSuccessPrefersMostRecent(t *testing.T) {
	p := New()

	first := p.Append("a", nil)
	first.Start()
	first.Succeed("one")

	second := p.Append("b", nil)
	second.Start()
	second.Succeed("two")

	third := p.Append("c", nil)
	third.Start()
	third.Fail(errors.New("nope"))

	require.Same(t, second, p.LastSuccess())
}

func TestLastSuccessEmpty(t *testing.T) {
	p := New()
	assert.Nil(t, p.LastSuccess())
	assert.Nil(t, p.Last())
}

func TestFingerprintIsOrderInsensitive(t *testing.T) {
	a := Fingerprint("search", map[string]any{"query": "revenue", "company": "Apple"})
	b := Fingerprint("search", map[string]any{"company": "Apple", "query": "revenue"})
	assert.Equal(t, a, b)

	c := Fingerprint("search", map[string]any{"company": "Microsoft", "query": "revenue"})
	assert.NotEqual(t, a, c)
}

func TestFingerprintNilArgs(t *testing.T) {
	assert.Equal(t, Fingerprint("pwd", nil), Fingerprint("pwd", map[string]any{}))
}

func TestWouldRepeat(t *testing.T) {
	p := New()
	assert.False(t, p.WouldRepeat("search", nil), "empty plan never repeats")

	p.Append("search", map[string]any{"query": "apple revenue"})
	assert.True(t, p.WouldRepeat("search", map[string]any{"query": "apple revenue"}))
	assert.False(t, p.WouldRepeat("search", map[string]any{"query": "microsoft revenue"}))
	assert.False(t, p.WouldRepeat("fetch", map[string]any{"query": "apple revenue"}))

	// A different call in between breaks the consecutive match.
	p.Append("fetch", map[string]any{"url": "x"})
	assert.False(t, p.WouldRepeat("search", map[string]any{"query": "apple revenue"}))
}

func TestTranscript(t *testing.T) {
	p := New()
	assert.Equal(t, "No tools have been executed yet.", p.Transcript())

	s := p.Append("finance_lookup", map[string]any{"company": "Apple"})
	s.Start()
	s.Succeed("revenue: 394B")

	f := p.Append("finance_lookup", map[string]any{"company": "Microsoft"})
	f.Start()
	f.Fail(errors.New("upstream timeout"))

	out := p.Transcript()
	assert.Contains(t, out, "Step 1: finance_lookup")
	assert.Contains(t, out, "revenue: 394B")
	assert.Contains(t, out, "Step 2: finance_lookup")
	assert.Contains(t, out, "upstream timeout")
	assert.Contains(t, out, "[succeeded]")
	assert.Contains(t, out, "[failed]")
}

func TestRecordsExportSteps(t *testing.T) {
	p := New()
	assert.Empty(t, p.Records())

	s := p.Append("finance_lookup", map[string]any{"company": "Apple"})
	s.Start()
	s.Succeed("revenue: 394B")

	f := p.Append("web_search", map[string]any{"query": "apple news"})
	f.Start()
	f.Fail(errors.New("upstream timeout"))

	records := p.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "finance_lookup", records[0].Tool)
	assert.Equal(t, "Apple", records[0].Arguments["company"])
	assert.Equal(t, "revenue: 394B", records[0].Output)
	assert.Empty(t, records[0].Error)
	assert.Equal(t, "web_search", records[1].Tool)
	assert.Equal(t, "upstream timeout", records[1].Error)
}
