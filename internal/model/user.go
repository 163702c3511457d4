package model

// UserPublic is the identity snapshot consumed from the identity/profile
// collaborator. It is read-only here: the messaging core stamps it onto
// messages and conversation views but never stores it authoritatively.
type UserPublic struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}
