package allocation

import (
	"sort"

	"exam-allocation/internal/models"
)

// PlanInput is the input of one Grouping Planner run.
type PlanInput struct {
	// Roster must already be normalized.
	Roster     []*models.Examinee
	GroupCount int
	Strategy   *models.Strategy
	// Capacities holds the effective capacities of the eligible rooms in
	// binder order. Only capacity_optimization reads it.
	Capacities []int
}

// Plan partitions the roster into at most GroupCount groups. The strategy's
// Type selects the branch; rule tokens are not interpreted here.
func Plan(in PlanInput) []models.Group {
	if len(in.Roster) == 0 {
		return nil
	}
	k := in.GroupCount
	if k <= 1 {
		return []models.Group{{Index: 0, Members: in.Roster[:len(in.Roster):len(in.Roster)]}}
	}
	k = min(k, len(in.Roster))

	var typ models.StrategyType
	if in.Strategy != nil {
		typ = in.Strategy.Type
	}
	switch typ {
	case models.StrategyRoundRobin:
		return roundRobinGroups(in.Roster, k)
	case models.StrategyDepartmentGrouping:
		return balancedGroups(normalizeByDepartment(in.Roster), k)
	case models.StrategyCapacityOptimization:
		return proportionalGroups(in.Roster, k, in.Capacities)
	default:
		return balancedGroups(in.Roster, k)
	}
}

// balancedGroups cuts k contiguous slices; the first n%k get one extra member.
// Name clusters survive because the roster is sorted before slicing.
func balancedGroups(roster []*models.Examinee, k int) []models.Group {
	n := len(roster)
	base, remainder := n/k, n%k
	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = base
		if i < remainder {
			sizes[i]++
		}
	}
	return contiguousGroups(roster, sizes)
}

func contiguousGroups(roster []*models.Examinee, sizes []int) []models.Group {
	groups := make([]models.Group, 0, len(sizes))
	start := 0
	for i, size := range sizes {
		end := min(start+size, len(roster))
		groups = append(groups, models.Group{Index: i, Members: roster[start:end:end]})
		start = end
	}
	// Residue from a rounding edge case goes to the last group.
	if start < len(roster) && len(groups) > 0 {
		last := &groups[len(groups)-1]
		last.Members = append(last.Members, roster[start:]...)
	}
	return groups
}

func roundRobinGroups(roster []*models.Examinee, k int) []models.Group {
	groups := make([]models.Group, k)
	for i := range groups {
		groups[i] = models.Group{Index: i, Members: make([]*models.Examinee, 0, len(roster)/k+1)}
	}
	for i, e := range roster {
		g := &groups[i%k]
		g.Members = append(g.Members, e)
	}
	return groups
}

// proportionalGroups sizes each group after its room's share of the total
// capacity using the largest remainder method. Every group gets at least one
// member; k never exceeds the roster size here.
func proportionalGroups(roster []*models.Examinee, k int, caps []int) []models.Group {
	if len(caps) < k {
		return balancedGroups(roster, k)
	}
	caps = caps[:k]
	total := 0
	for _, c := range caps {
		if c < 0 {
			return balancedGroups(roster, k)
		}
		total += c
	}
	if total == 0 {
		return balancedGroups(roster, k)
	}

	spare := len(roster) - k
	sizes := make([]int, k)
	type share struct {
		idx  int
		frac int
	}
	shares := make([]share, k)
	given := 0
	for i, c := range caps {
		extra := spare * c / total
		sizes[i] = 1 + extra
		given += extra
		shares[i] = share{idx: i, frac: spare * c % total}
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; given < spare; i++ {
		sizes[shares[i%k].idx]++
		given++
	}
	return contiguousGroups(roster, sizes)
}
