package models

import "time"

type AssignmentType string

const (
	AssignmentFull    AssignmentType = "full"
	AssignmentPartial AssignmentType = "partial"
)

type BindResult struct {
	Assignments       []*Assignment `json:"assignments"`
	UnplacedExaminees []*Examinee   `json:"unplaced_examinees"`
	RoomsUsed         int           `json:"rooms_used"`
}

type RunResult struct {
	RunID             string        `json:"run_id"`
	Strategy          string        `json:"strategy"`
	StrategyType      StrategyType  `json:"strategy_type"`
	GroupCount        int           `json:"group_count"`
	Cleared           int64         `json:"cleared"`
	Assignments       []*Assignment `json:"assignments"`
	UnplacedExaminees []*Examinee   `json:"unplaced_examinees"`
	RoomsUsed         int           `json:"rooms_used"`
	Duration          time.Duration `json:"duration"`
}

type RoomSummary struct {
	RoomID            int64  `json:"room_id"`
	Name              string `json:"name"`
	EffectiveCapacity int    `json:"effective_capacity"`
	Occupied          int    `json:"occupied"`
	Available         int    `json:"available"`
}

type PlacementResult struct {
	CourseID       int64          `json:"course_id"`
	CourseLabel    string         `json:"course_label"`
	PlacedCount    int            `json:"placed_count"`
	Remaining      int            `json:"remaining"`
	AssignmentType AssignmentType `json:"assignment_type"`
	RoomSummary    RoomSummary    `json:"room_summary"`
}

// Progress is advisory telemetry for a full-roster run. Percent is -1 on failure.
type Progress struct {
	RunID     string    `json:"run_id"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}
