package session

import "time"

// Session is the record created once per successful login and persisted
// under its ID. The JSON layout is the persisted wire format; the ID is
// the store key and the expiry only drives the store TTL, so neither is
// serialised.
type Session struct {
	ID           string    `json:"-"`
	Username     string    `json:"username"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiration   string    `json:"expiration"`
	Expiry       time.Time `json:"-"`
}

// State is the anti-forgery record written when an authorization is
// started and consumed when the provider redirects back. It is bound to
// the browser fingerprint that initiated the login.
type State struct {
	ID          string    `json:"-"`
	Fingerprint string    `json:"fingerprint"`
	Expiry      time.Time `json:"expiry"`
}
