package models

// Examinee is a person eligible to be placed into an exam room.
type Examinee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Eligible   bool   `json:"eligible"`
}
