package models

type Room struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Building     string `json:"building,omitempty"`
	Capacity     int    `json:"capacity"`
	ExamCapacity *int   `json:"exam_capacity,omitempty"`
	Active       bool   `json:"active"`
	Bookable     bool   `json:"bookable"`
}

// EffectiveCapacity is the exam capacity when it is set and positive,
// otherwise the general capacity.
func (r *Room) EffectiveCapacity() int {
	if r.ExamCapacity != nil && *r.ExamCapacity > 0 {
		return *r.ExamCapacity
	}
	return r.Capacity
}

type RoomFilter struct {
	ActiveOnly   bool `json:"active_only"`
	BookableOnly bool `json:"bookable_only"`
}
