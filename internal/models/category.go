package models

// Category is a user-defined bucket that events are assigned to for the
// weekly audit. ID is generated once and never changes; name and color are
// user-editable. Display order is the slice position in the stored list.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CategoryUpdate carries the editable fields of a category. Nil fields are
// left untouched.
type CategoryUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}
