package models

import "fmt"

// User is a build server user, identified by username and (when known) numeric ID.
type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
}

func (u *User) String() string {
	if u == nil {
		return ""
	}
	if u.Username == "" && u.ID != 0 {
		return fmt.Sprintf("id:%d", u.ID)
	}
	return u.Username
}
