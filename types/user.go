package types

// User is the identity resolved by the profile endpoint or returned by login/registration.
type User struct {
	Id    string `json:"id" mapstructure:"id"`
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
	Role  Role   `json:"role" mapstructure:"-"`
}

// UserSummary is the part of the sender attached to each chat message.
type UserSummary struct {
	Id    string `json:"id" mapstructure:"id"`
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
}
