package models

import "time"

type Course struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const EnrollmentStatusEnrolled = "enrolled"

type Enrollment struct {
	CourseID   int64     `json:"course_id"`
	ExamineeID string    `json:"examinee_id"`
	Status     string    `json:"status"` // enrolled, dropped, completed
	EnrolledAt time.Time `json:"enrolled_at"`
}
