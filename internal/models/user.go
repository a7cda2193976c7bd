package models

// User is a registered login. Keyed by Username.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	PasswordHash    string `json:"passwordHash"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Key returns the username, the users table key.
func (u *User) Key() string { return u.Username }

// Validate checks the fields every stored user must carry.
func (u *User) Validate() error {
	switch {
	case u.ID == "":
		return &ValidationError{Table: UsersTable, Field: "id"}
	case u.Username == "":
		return &ValidationError{Table: UsersTable, Field: "username"}
	case u.PasswordHash == "":
		return &ValidationError{Table: UsersTable, Field: "passwordHash"}
	}
	return nil
}

// Clone returns a copy safe to hand to callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
