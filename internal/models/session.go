package models

// TokenPayload is payload of cart session token
type TokenPayload struct {
	Session string
}
