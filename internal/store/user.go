package store

import "time"

type User struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email"`
	CreatedOn time.Time `json:"created_on"`
}
