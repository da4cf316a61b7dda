package store

import (
	"fmt"

	"exam-allocation/internal/models"
)

var (
	demoFirstNames  = []string{"Ada", "Boris", "Chiara", "Dmitri", "Elif", "Farah", "Goran", "Hana", "Ivo", "Jun", "Kofi", "Lena"}
	demoLastNames   = []string{"Abbott", "Baker", "Castillo", "Dubois", "Eriksen"}
	demoDepartments = []string{"Computer Science", "Mathematics", "Physics"}
)

func intPtr(v int) *int { return &v }

// SeedDemo loads a small campus: five rooms, three courses and sixty
// examinees. CS301 and MATH201 have enrollments, PHY101 has none.
func (s *MemoryStore) SeedDemo() {
	s.AddRoom(models.Room{Name: "Main Hall", Building: "North", Capacity: 120, ExamCapacity: intPtr(100), Active: true, Bookable: true})
	s.AddRoom(models.Room{Name: "Room 101", Building: "North", Capacity: 40, Active: true, Bookable: true})
	s.AddRoom(models.Room{Name: "Room 102", Building: "North", Capacity: 35, ExamCapacity: intPtr(30), Active: true, Bookable: true})
	s.AddRoom(models.Room{Name: "Lab 3", Building: "South", Capacity: 25, Active: false, Bookable: true})
	s.AddRoom(models.Room{Name: "Seminar 4", Building: "South", Capacity: 20, Active: true, Bookable: false})

	cs := s.AddCourse(models.Course{Code: "CS301", Name: "Algorithms", Department: "Computer Science"})
	math := s.AddCourse(models.Course{Code: "MATH201", Name: "Linear Algebra", Department: "Mathematics"})
	s.AddCourse(models.Course{Code: "PHY101", Name: "Mechanics", Department: "Physics"})

	n := 0
	for _, last := range demoLastNames {
		for _, first := range demoFirstNames {
			n++
			s.AddExaminee(models.Examinee{
				ID:         fmt.Sprintf("E%04d", n),
				Name:       first + " " + last,
				Department: demoDepartments[n%len(demoDepartments)],
				// every tenth examinee is not eligible
				Eligible: n%10 != 0,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	enrolled := 0
	for _, e := range s.examinees {
		if !e.Eligible {
			continue
		}
		if enrolled < 40 {
			s.enrollLocked(cs.ID, e.ID)
		}
		if enrolled >= 20 {
			s.enrollLocked(math.ID, e.ID)
		}
		enrolled++
	}
}
