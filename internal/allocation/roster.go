package allocation

import (
	"sort"
	"strings"

	"exam-allocation/internal/models"
)

// missingNameKey sorts examinees without a display name after any ASCII-letter name.
const missingNameKey = "ZZZ"

func sortKey(e *models.Examinee) string {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return missingNameKey
	}
	return strings.ToUpper(name)
}

// NormalizeRoster returns the roster ordered by upper-cased display name.
// Equal keys keep their input order. The input slice is not modified and
// duplicates are not removed.
func NormalizeRoster(roster []*models.Examinee) []*models.Examinee {
	out := make([]*models.Examinee, len(roster))
	copy(out, roster)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

// normalizeByDepartment clusters examinees by department and orders each
// cluster by display name.
func normalizeByDepartment(roster []*models.Examinee) []*models.Examinee {
	out := NormalizeRoster(roster)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Department) < strings.ToUpper(out[j].Department)
	})
	return out
}
