package models

import "time"

// Group is a set of members that share expenses.
// Deleting a group deletes the expenses recorded against it.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Description is optional free text.
	Description string

	// Members is the current member set, ordered by username.
	Members []UserRef

	CreatedAt time.Time
}

// HasMember reports whether userID is currently in the member set.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
