package domain

// User is the persisted identity record. Username and ID are immutable once
// the record exists; profile fields change through ProfileUpdate only.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	IsStaff      bool   `json:"is_staff"`
	IsSuperuser  bool   `json:"is_superuser"`
}

// Profile holds the optional fields accepted at registration.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

// Privileges are assigned at registration and never touched by profile updates.
type Privileges struct {
	IsStaff     bool
	IsSuperuser bool
}

// ProfileUpdate is the allow-list of mutable fields. Nil means "leave as is".
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}

// Fields flattens the update into store field names.
func (u ProfileUpdate) Fields() map[string]string {
	out := make(map[string]string, 3)
	if u.FirstName != nil {
		out["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		out["last_name"] = *u.LastName
	}
	if u.Email != nil {
		out["email"] = *u.Email
	}
	return out
}
