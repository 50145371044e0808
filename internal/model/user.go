package model

// User is the identity handed over by the identity provider's token.
// Users are not stored locally.
type User struct {
	ID    string
	Email string
}
