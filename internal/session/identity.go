package session

// Identity is the resolved caller identity: an authenticated session or
// Anonymous. Guards branch on IsAnonymous rather than probing record
// fields.
type Identity struct {
	SessionID string
	Session   Session
}

// Anonymous is the identity of a caller without a valid session.
var Anonymous = Identity{}

func (id Identity) IsAnonymous() bool {
	return id.SessionID == ""
}
