package store

import "time"

type APIKey struct {
	ID        int64     `json:"id"`
	Value     string    `json:"value"`
	KeyUserID *int64    `json:"user_id"`
	CreatedOn time.Time `json:"created_on"`
}
