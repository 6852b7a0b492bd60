// Package session contiene los DTOs de /api/session.
package session

type SessionResponse struct {
	DID      string `json:"did"`
	Handle   string `json:"handle"`
	Verified bool   `json:"verified"`
}
