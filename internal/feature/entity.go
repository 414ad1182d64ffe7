package feature

import "time"

// Flag is a named feature switch. Enabled turns the feature on for every
// user; EnabledFor is a per-user allow list consulted when Enabled is false.
type Flag struct {
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	EnabledFor []string  `json:"enabledFor"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AppliesTo reports whether the flag is on for the given user.
func (f *Flag) AppliesTo(userID string) bool {
	if f.Enabled {
		return true
	}
	if userID == "" {
		return false
	}
	for _, id := range f.EnabledFor {
		if id == userID {
			return true
		}
	}
	return false
}
