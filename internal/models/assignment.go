package models

import "time"

type Assignment struct {
	ID          int64     `json:"id"`
	ExamineeID  string    `json:"examinee_id"`
	RoomID      int64     `json:"room_id"`
	CourseLabel string    `json:"course_label"`
	ExamDate    time.Time `json:"exam_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Group is a contiguous slice of the sorted roster. It only lives for one run.
type Group struct {
	Index   int         `json:"index"`
	Members []*Examinee `json:"members"`
}

func (g Group) Size() int { return len(g.Members) }
