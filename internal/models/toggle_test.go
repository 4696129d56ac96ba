package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBackend = errors.New("backend down")

func TestTogglesMarkAndUnmark(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1", SolvedBy: []string{"alice"}}}

	mark := ts.Begin(&qs[0], "bob", true)
	assert.Equal(t, []string{"alice", "bob"}, qs[0].SolvedBy)
	assert.False(t, ts.Finish(qs, mark, nil))

	again := ts.Begin(&qs[0], "bob", true)
	assert.Equal(t, []string{"alice", "bob"}, qs[0].SolvedBy)
	ts.Finish(qs, again, nil)

	unmark := ts.Begin(&qs[0], "bob", false)
	ts.Finish(qs, unmark, nil)
	assert.Equal(t, []string{"alice"}, qs[0].SolvedBy)
	assert.Empty(t, ts.pending)
}

func TestTogglesUnmarkRemovesEveryOccurrence(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1", SolvedBy: []string{"bob", "alice", "bob"}}}

	ts.Begin(&qs[0], "bob", false)

	assert.Equal(t, []string{"alice"}, qs[0].SolvedBy)
}

func TestTogglesFailureRestoresOnlyOwnMembership(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1", SolvedBy: []string{"alice"}}}

	mark := ts.Begin(&qs[0], "bob", true)
	// another user's solve arrives while the call is in flight
	qs[0].SolvedBy = append(qs[0].SolvedBy, "carol")

	assert.True(t, ts.Finish(qs, mark, errBackend))
	assert.Equal(t, []string{"alice", "carol"}, qs[0].SolvedBy)
}

func TestTogglesOverlappingMarksKeepSuccessfulOne(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1"}}

	first := ts.Begin(&qs[0], "bob", true)
	second := ts.Begin(&qs[0], "bob", true)

	assert.False(t, ts.Finish(qs, second, nil))
	assert.False(t, ts.Finish(qs, first, errBackend))
	assert.Equal(t, []string{"bob"}, qs[0].SolvedBy)
}

func TestTogglesOverlappingFailuresRestoreConfirmedState(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1"}}

	first := ts.Begin(&qs[0], "bob", true)
	second := ts.Begin(&qs[0], "bob", false)
	third := ts.Begin(&qs[0], "bob", true)

	ts.Finish(qs, first, errBackend)
	assert.Equal(t, []string{"bob"}, qs[0].SolvedBy)

	ts.Finish(qs, second, errBackend)
	assert.True(t, ts.Finish(qs, third, errBackend))
	assert.Empty(t, qs[0].SolvedBy)
}

func TestTogglesFailureAfterConfirmedMark(t *testing.T) {
	var ts Toggles
	qs := []Question{{ID: "1"}}

	mark := ts.Begin(&qs[0], "bob", true)
	unmark := ts.Begin(&qs[0], "bob", false)

	ts.Finish(qs, mark, nil)
	assert.True(t, ts.Finish(qs, unmark, errBackend))
	assert.Equal(t, []string{"bob"}, qs[0].SolvedBy)
}
