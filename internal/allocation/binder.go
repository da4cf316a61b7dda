package allocation

import (
	"time"

	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"
)

// DefaultCourseLabels are the placeholder labels used when a run does not
// name its courses.
var DefaultCourseLabels = []string{"CS301", "MATH201"}

// CourseLabeler returns the course label for the group at index i.
type CourseLabeler func(i int) string

// ExamDater returns the exam date for the group at index i.
type ExamDater func(i int) time.Time

// CycleLabels cycles through labels by group index.
func CycleLabels(labels ...string) CourseLabeler {
	if len(labels) == 0 {
		labels = DefaultCourseLabels
	}
	return func(i int) string {
		return labels[i%len(labels)]
	}
}

// AlternatingDates puts even groups on day and odd groups on the day after.
func AlternatingDates(day time.Time) ExamDater {
	day = truncateToDay(day)
	return func(i int) time.Time {
		return day.AddDate(0, 0, i%2)
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type BindInput struct {
	Groups []models.Group
	// Rooms must be the eligible pool in binder order (see FilterRooms).
	Rooms []*models.Room
	Label CourseLabeler
	Date  ExamDater
	Now   time.Time
}

// Bind pairs group i with room i and places at most the room's effective
// capacity from each group. Overflow and groups without a room are reported
// as unplaced. Bind performs no I/O.
func Bind(in BindInput) (*models.BindResult, error) {
	if in.Rooms == nil {
		return nil, apperrors.New(apperrors.KindInvalidAllocationInput, "room list is nil")
	}
	for _, r := range in.Rooms {
		if r == nil {
			return nil, apperrors.New(apperrors.KindInvalidAllocationInput, "room list contains a nil room")
		}
		if r.Capacity < 0 || (r.ExamCapacity != nil && *r.ExamCapacity < 0) {
			return nil, apperrors.For(apperrors.KindInvalidAllocationInput, "room", r.ID, "negative capacity")
		}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	label := in.Label
	if label == nil {
		label = CycleLabels()
	}
	date := in.Date
	if date == nil {
		date = AlternatingDates(now)
	}

	result := &models.BindResult{
		Assignments:       []*models.Assignment{},
		UnplacedExaminees: []*models.Examinee{},
	}
	pairs := min(len(in.Groups), len(in.Rooms))
	for i := 0; i < pairs; i++ {
		group, room := in.Groups[i], in.Rooms[i]
		placed := min(group.Size(), max(room.EffectiveCapacity(), 0))

		courseLabel, examDate := label(group.Index), date(group.Index)
		for _, e := range group.Members[:placed] {
			result.Assignments = append(result.Assignments, &models.Assignment{
				ExamineeID:  e.ID,
				RoomID:      room.ID,
				CourseLabel: courseLabel,
				ExamDate:    examDate,
				CreatedAt:   now,
			})
		}
		if placed > 0 {
			result.RoomsUsed++
		}
		result.UnplacedExaminees = append(result.UnplacedExaminees, group.Members[placed:]...)
	}
	for _, group := range in.Groups[pairs:] {
		result.UnplacedExaminees = append(result.UnplacedExaminees, group.Members...)
	}
	return result, nil
}
