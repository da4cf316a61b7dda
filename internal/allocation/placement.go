package allocation

import (
	"context"
	"errors"

	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"

	"go.uber.org/zap"
)

type PlaceRequest struct {
	CourseID int64
	RoomID   int64
	// AutoEnroll seeds a bounded demo roster when the course has nobody
	// enrolled. Off unless the caller asks for it.
	AutoEnroll bool
}

// PlaceCourse assigns one course's sorted roster into one room, up to the
// room's effective capacity. A room that already holds any assignment is
// rejected, whichever course the existing rows belong to.
func (e *Engine) PlaceCourse(ctx context.Context, req PlaceRequest) (result *models.PlacementResult, err error) {
	log := e.logger.With(zap.Int64("course_id", req.CourseID), zap.Int64("room_id", req.RoomID))
	defer func() {
		if err != nil {
			e.metrics.RecordPlacement(outcomeOf(err), 0, 0)
			log.Warn("placement rejected", zap.Error(err))
			return
		}
		e.metrics.RecordPlacement(string(result.AssignmentType), result.PlacedCount, result.Remaining)
		log.Info("placement complete",
			zap.String("course", result.CourseLabel),
			zap.Int("placed", result.PlacedCount),
			zap.Int("remaining", result.Remaining),
		)
	}()

	room, err := e.getRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	course, err := e.getCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if err := checkVacant(ctx, e.store, room.ID); err != nil {
		return nil, err
	}

	roster, err := e.store.FetchCourseRoster(ctx, course.ID)
	if err != nil {
		return nil, apperrors.Persistence("fetch course roster", err)
	}
	if len(roster) == 0 && req.AutoEnroll {
		if _, err := e.SeedCourseRoster(ctx, course.ID, e.autoEnrollLimit); err != nil {
			return nil, err
		}
		if roster, err = e.store.FetchCourseRoster(ctx, course.ID); err != nil {
			return nil, apperrors.Persistence("fetch course roster", err)
		}
	}
	if len(roster) == 0 {
		return nil, apperrors.For(apperrors.KindNoEligibleExaminees, "course", course.ID, "no enrolled examinees")
	}

	sorted := NormalizeRoster(roster)
	capacity := max(room.EffectiveCapacity(), 0)
	placed := min(len(sorted), capacity)
	remaining := max(len(sorted)-placed, 0)

	now := e.now()
	today := truncateToDay(now)
	assignments := make([]*models.Assignment, 0, placed)
	for _, ex := range sorted[:placed] {
		assignments = append(assignments, &models.Assignment{
			ExamineeID:  ex.ID,
			RoomID:      room.ID,
			CourseLabel: course.Code,
			ExamDate:    today,
			CreatedAt:   now,
		})
	}

	// Re-check occupancy inside the serialized section so two placements
	// cannot both see an empty room.
	err = e.store.InLedgerTx(ctx, func(l Ledger) error {
		if err := checkVacant(ctx, l, room.ID); err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		return l.BulkInsert(ctx, assignments)
	})
	if err != nil {
		return nil, apperrors.Persistence("insert placement", err)
	}

	typ := models.AssignmentFull
	if remaining > 0 {
		typ = models.AssignmentPartial
	}
	return &models.PlacementResult{
		CourseID:       course.ID,
		CourseLabel:    course.Code,
		PlacedCount:    placed,
		Remaining:      remaining,
		AssignmentType: typ,
		RoomSummary: models.RoomSummary{
			RoomID:            room.ID,
			Name:              room.Name,
			EffectiveCapacity: capacity,
			Occupied:          placed,
			Available:         capacity - placed,
		},
	}, nil
}

// RemovePlacement deletes every assignment of the course in the room. Other
// rooms holding the same course are untouched.
func (e *Engine) RemovePlacement(ctx context.Context, courseID, roomID int64) (int64, error) {
	room, err := e.getRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	course, err := e.getCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	var removed int64
	err = e.store.InLedgerTx(ctx, func(l Ledger) error {
		removed, err = l.DeleteByRoomAndCourse(ctx, room.ID, course.Code)
		return err
	})
	if err != nil {
		return 0, apperrors.Persistence("remove placement", err)
	}
	e.logger.Info("placement removed",
		zap.Int64("course_id", course.ID),
		zap.Int64("room_id", room.ID),
		zap.Int64("removed", removed),
	)
	return removed, nil
}

// SeedCourseRoster enrolls up to limit eligible examinees into the course.
// It exists for demo and bootstrap data only.
func (e *Engine) SeedCourseRoster(ctx context.Context, courseID int64, limit int) (int, error) {
	course, err := e.getCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = e.autoEnrollLimit
	}
	n, err := e.store.SeedEnrollments(ctx, course.ID, limit)
	if err != nil {
		return 0, apperrors.Persistence("seed enrollments", err)
	}
	e.logger.Info("seeded course roster", zap.Int64("course_id", course.ID), zap.Int("enrolled", n))
	return n, nil
}

func (e *Engine) getRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := e.store.GetRoom(ctx, id)
	if errors.Is(err, apperrors.ErrRecordNotFound) || (err == nil && room == nil) {
		return nil, apperrors.For(apperrors.KindRoomNotFound, "room", id, "")
	}
	if err != nil {
		return nil, apperrors.Persistence("get room", err)
	}
	return room, nil
}

func (e *Engine) getCourse(ctx context.Context, id int64) (*models.Course, error) {
	course, err := e.store.GetCourse(ctx, id)
	if errors.Is(err, apperrors.ErrRecordNotFound) || (err == nil && course == nil) {
		return nil, apperrors.For(apperrors.KindCourseNotFound, "course", id, "")
	}
	if err != nil {
		return nil, apperrors.Persistence("get course", err)
	}
	return course, nil
}

func checkVacant(ctx context.Context, l Ledger, roomID int64) error {
	n, err := l.CountByRoom(ctx, roomID)
	if err != nil {
		return apperrors.Persistence("count room assignments", err)
	}
	if n > 0 {
		return apperrors.For(apperrors.KindRoomAlreadyOccupied, "room", roomID,
			"room already holds assignments; remove them before placing another course")
	}
	return nil
}
