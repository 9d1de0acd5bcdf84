package models

import "time"

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	StatusPending  ChallengeStatus = "PENDING"
	StatusAccepted ChallengeStatus = "ACCEPTED"
	StatusDeclined ChallengeStatus = "DECLINED"
	StatusArchived ChallengeStatus = "ARCHIVED"
)

// User represents a person known to the system, keyed by email.
type User struct {
	ID         string    `json:"id"`         // Internal ID
	Email      string    `json:"email"`      // Unique, stored as supplied
	Name       *string   `json:"name"`       // Display name
	ProfilePic *string   `json:"profilePic"` // Picture URL from the identity provider
	CreatedAt  time.Time `json:"createdAt"`  // When the user was first seen
}

// DisplayName returns the user's name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// UserDefaults are applied only when a user row is created.
type UserDefaults struct {
	Name       string
	ProfilePic string
}

// Challenge is a directed request from one user to another.
type Challenge struct {
	ID           string          `json:"id"`           // Challenge ID
	Description  string          `json:"description"`  // What has to be done
	Charity      *string         `json:"charity"`      // Optional charity name
	Deadline     time.Time       `json:"deadline"`     // Date to finish by
	Status       ChallengeStatus `json:"status"`       // Always PENDING on creation
	ChallengerID string          `json:"challengerId"` // Who issued it (foreign key to users.id)
	ChallengedID string          `json:"challengedId"` // Who has to do it (foreign key to users.id)
	CreatedAt    time.Time       `json:"createdAt"`    // When the challenge was created
}

// Notification is a one-way message to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"` // Recipient (foreign key to users.id)
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Party is the minimal user projection shown on the public feed.
type Party struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

// FeedEntry is a challenge with both parties projected for the public feed.
type FeedEntry struct {
	Challenge
	Challenger Party `json:"challenger"`
	Challenged Party `json:"challenged"`
}

// DashboardEntry is a challenge with both parties fully loaded.
type DashboardEntry struct {
	Challenge
	Challenger User `json:"challenger"`
	Challenged User `json:"challenged"`
}

// Identity is the authenticated caller as reported by the session token.
// A zero Email means the caller is not authenticated.
type Identity struct {
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// FullName joins given and family names, or returns "" without a given name.
func (i Identity) FullName() string {
	if i.GivenName == "" {
		return ""
	}
	if i.FamilyName == "" {
		return i.GivenName
	}
	return i.GivenName + " " + i.FamilyName
}

// NewChallenge is the input of the challenge creation workflow.
type NewChallenge struct {
	Description     string
	Charity         string
	Deadline        time.Time
	ChallengedEmail string
}

// ChallengeCreated is emitted after a challenge has been committed.
type ChallengeCreated struct {
	Challenge      Challenge
	Challenger     User
	Challenged     User
	RequesterEmail string
}
