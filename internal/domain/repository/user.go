package repository

import "time"

// User es un usuario persistido dentro de un realm.
type User struct {
	ID                     string
	RealmID                string
	Username               string
	Email                  string
	ServiceAccountClientID string
	RequiredActions        []string
	CreatedAt              time.Time
}

// IsServiceAccount indica si el usuario respalda a un client.
func (u *User) IsServiceAccount() bool { return u.ServiceAccountClientID != "" }
