package allocation

import (
	"sort"

	"exam-allocation/internal/models"
)

// FilterRooms keeps active, bookable rooms with a positive effective capacity,
// largest first. Ties are broken by room ID.
func FilterRooms(rooms []*models.Room) []*models.Room {
	var eligible []*models.Room
	for _, r := range rooms {
		if r == nil || !r.Active || !r.Bookable || r.EffectiveCapacity() <= 0 {
			continue
		}
		eligible = append(eligible, r)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		ci, cj := eligible[i].EffectiveCapacity(), eligible[j].EffectiveCapacity()
		if ci != cj {
			return ci > cj
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// TargetGroupCount is min(eligibleRooms, rooms, rosterSize), never below 1.
func TargetGroupCount(eligibleRooms, rooms, rosterSize int) int {
	k := min(eligibleRooms, rooms, rosterSize)
	if k < 1 {
		return 1
	}
	return k
}

func capacities(rooms []*models.Room) []int {
	caps := make([]int, len(rooms))
	for i, r := range rooms {
		caps[i] = r.EffectiveCapacity()
	}
	return caps
}
