package models

import (
	"strings"
)

// Question is an entry of the shared problem set
type Question struct {
	ID       ID       `json:"question_id"`
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Tags     []string `json:"tags"`
	SolvedBy []string `json:"solved_by"`
}

// IsSolvedBy reports whether username is in the solved set
func (q *Question) IsSolvedBy(username string) bool {
	if q == nil || username == "" {
		return false
	}
	for _, u := range q.SolvedBy {
		if u == username {
			return true
		}
	}
	return false
}

// Matches reports whether the title or any tag contains query, ignoring case.
// An empty query matches everything.
func (q *Question) Matches(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(q.Title), query) {
		return true
	}
	for _, tag := range q.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate sets without aliasing.
// Missing sets become empty so they encode as [] rather than null.
func (q Question) Clone() Question {
	q.Tags = append([]string{}, q.Tags...)
	q.SolvedBy = append([]string{}, q.SolvedBy...)
	return q
}

// NewQuestion is the admin payload for adding a question
type NewQuestion struct {
	Title string   `json:"title" yaml:"title"`
	Link  string   `json:"link" yaml:"link"`
	Tags  []string `json:"tags" yaml:"tags"`
}

// ParseTags splits a comma-separated tag list, trimming blanks
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
