package domain

// CredentialKind names the artifact an identity was resolved from.
type CredentialKind string

const (
	CredentialNone    CredentialKind = "none"
	CredentialBearer  CredentialKind = "bearer"
	CredentialSession CredentialKind = "session"
)

// Identity is the resolved caller of a request: a concrete user or anonymous.
type Identity struct {
	User       *User
	Kind       CredentialKind
	Credential string
}

func Anonymous() Identity {
	return Identity{Kind: CredentialNone}
}

func (i Identity) IsAnonymous() bool { return i.User == nil }

func IsAuthenticated(i Identity) bool {
	return i.User != nil
}

// IsManager holds for staff or superusers.
func IsManager(i Identity) bool {
	return i.User != nil && (i.User.IsStaff || i.User.IsSuperuser)
}

func IsAdmin(i Identity) bool {
	return i.User != nil && i.User.IsSuperuser
}
