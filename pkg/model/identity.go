package model

// Identity is the caller identity produced by the auth collaborator.
// Nothing beyond the username is assumed to exist.
type Identity struct {
	username string
	admin    bool
}

func NewIdentity(username string, admin bool) Identity {
	return Identity{username: username, admin: admin}
}

func (i Identity) Username() string { return i.username }

// Admin is informational; authorization decisions stay with the caller.
func (i Identity) Admin() bool { return i.admin }

func (i Identity) Anonymous() bool { return i.username == "" }
