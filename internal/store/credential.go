package store

import "time"

type JobCredential struct {
	JobCredentialID int64     `json:"credential_id"`
	Name            string    `json:"name"`
	BaseURL         string    `json:"base_url"`
	Username        string    `json:"username"`
	SecretHash      string    `json:"-"`
	Active          bool      `json:"active"`
	CreatedOn       time.Time `json:"created_on"`

	Secret []byte `json:"-"`
}
