package models

// Ladder is a named, ordered, shareable subset of questions.
// Users[0] is the owner.
type Ladder struct {
	ID        ID       `json:"table_id"`
	Title     string   `json:"table_title"`
	Questions []ID     `json:"questions"`
	Users     []string `json:"user"`
}

// Owner returns the distinguished first collaborator, or "" when there is none
func (l *Ladder) Owner() string {
	if l == nil || len(l.Users) == 0 {
		return ""
	}
	return l.Users[0]
}

// IsOwner reports whether username owns the ladder
func (l *Ladder) IsOwner(username string) bool {
	return username != "" && l.Owner() == username
}

// IsMember reports whether username is in the collaborator set
func (l *Ladder) IsMember(username string) bool {
	if l == nil || username == "" {
		return false
	}
	for _, u := range l.Users {
		if u == username {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the ladder. Missing lists become empty so
// they encode as [] rather than null.
func (l Ladder) Clone() Ladder {
	l.Questions = append([]ID{}, l.Questions...)
	l.Users = append([]string{}, l.Users...)
	return l
}

// EditAction selects the direction of a ladder membership edit
type EditAction string

const (
	EditAdd    EditAction = "add"
	EditRemove EditAction = "remove"
)

// User is an account as listed by the admin endpoints
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}
