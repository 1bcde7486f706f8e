package model

// User is a stored account record. Pure data: all behavior comes from the
// embedded Base.
type User struct {
	Base
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func init() {
	Types.Register("User", func() Object { return NewUser() })
}

// NewUser returns a User with a fresh identity and empty domain fields.
func NewUser() *User {
	return &User{Base: NewBase()}
}

// TypeName returns "User".
func (u *User) TypeName() string { return "User" }

// ToMap serializes the user, including the type tag.
func (u *User) ToMap() map[string]any {
	m := u.baseMap()
	m[ClassKey] = u.TypeName()
	m["email"] = u.Email
	m["password"] = u.Password
	m["first_name"] = u.FirstName
	m["last_name"] = u.LastName
	return m
}

// FromMap assigns attributes onto the user. Unknown keys are kept in
// Extra so a record round-trips without loss.
func (u *User) FromMap(attrs map[string]any) error {
	rest, err := u.applyBase(attrs)
	if err != nil {
		return err
	}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"email", &u.Email},
		{"password", &u.Password},
		{"first_name", &u.FirstName},
		{"last_name", &u.LastName},
	} {
		if err := stringField(rest, f.key, f.dst); err != nil {
			return err
		}
	}
	if len(rest) > 0 {
		if u.Extra == nil {
			u.Extra = make(map[string]any, len(rest))
		}
		for k, v := range rest {
			u.Extra[k] = v
		}
	}
	return nil
}
