package models

// Toggle is one optimistic change of a user's membership in a question's
// solved set, started by Toggles.Begin and settled by Toggles.Finish
type Toggle struct {
	QuestionID ID
	Username   string
	Solved     bool
	seq        uint64
}

type pendingToggle struct {
	latest    uint64
	inFlight  int
	confirmed bool
}

// Toggles tracks in-flight solved toggles per question. A failed toggle
// only rolls back when no newer toggle on the same question was started,
// and it restores the last membership the backend confirmed. Only the
// toggling user's membership is touched. The zero value is ready to use;
// callers serialise access with their own lock.
type Toggles struct {
	next    uint64
	pending map[ID]*pendingToggle
}

// Begin applies marking (solved=true) or unmarking q for username. Marking
// never duplicates the user and unmarking removes every occurrence.
func (ts *Toggles) Begin(q *Question, username string, solved bool) Toggle {
	if ts.pending == nil {
		ts.pending = make(map[ID]*pendingToggle)
	}
	p, ok := ts.pending[q.ID]
	if !ok {
		p = &pendingToggle{confirmed: q.IsSolvedBy(username)}
		ts.pending[q.ID] = p
	}
	ts.next++
	p.latest = ts.next
	p.inFlight++

	setSolved(q, username, solved)
	return Toggle{QuestionID: q.ID, Username: username, Solved: solved, seq: ts.next}
}

// Finish settles t with the outcome of its backend call and reports whether
// the matching question in questions was rolled back
func (ts *Toggles) Finish(questions []Question, t Toggle, err error) bool {
	p, ok := ts.pending[t.QuestionID]
	if !ok {
		return false
	}
	p.inFlight--
	defer func() {
		if p.inFlight <= 0 {
			delete(ts.pending, t.QuestionID)
		}
	}()

	if err == nil {
		p.confirmed = t.Solved
		return false
	}
	if p.latest != t.seq {
		return false
	}
	for i := range questions {
		if questions[i].ID == t.QuestionID {
			setSolved(&questions[i], t.Username, p.confirmed)
			return true
		}
	}
	return false
}

// setSolved sets username's membership in q's solved set, keeping the
// order of the other members
func setSolved(q *Question, username string, solved bool) {
	if solved {
		if !q.IsSolvedBy(username) {
			q.SolvedBy = append(append([]string(nil), q.SolvedBy...), username)
		}
		return
	}
	kept := make([]string, 0, len(q.SolvedBy))
	for _, u := range q.SolvedBy {
		if u != username {
			kept = append(kept, u)
		}
	}
	q.SolvedBy = kept
}
