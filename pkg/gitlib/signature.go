package gitlib

import "time"

// Signature is a commit author as recorded by libgit2.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String renders the signature the way git blame reports authors.
func (s Signature) String() string {
	switch {
	case s.Email == "":
		return s.Name
	case s.Name == "":
		return "<" + s.Email + ">"
	default:
		return s.Name + " <" + s.Email + ">"
	}
}
