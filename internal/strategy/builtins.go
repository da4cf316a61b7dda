package strategy

import "exam-allocation/internal/models"

// DefaultStrategyName names the protected default strategy.
const DefaultStrategyName = "Smart Alphabetical Grouping"

const builtinVersion = "1.0"

// Builtins returns a fresh copy of the built-in catalog. The alphabetical
// grouping strategy is the only one marked active.
func Builtins() []*models.Strategy {
	return []*models.Strategy{
		{
			Name:        "Round Robin Distribution",
			Description: "Deals examinees across rooms one at a time in sorted order.",
			Version:     builtinVersion,
			Type:        models.StrategyRoundRobin,
			Rules:       []string{models.RuleBalanceLoad, models.RuleRespectCapacityLimits},
		},
		{
			Name:        DefaultStrategyName,
			Description: "Sorts examinees by name and splits the roster into contiguous, evenly sized groups, one per room.",
			Version:     builtinVersion,
			Type:        models.StrategyAlphabeticalGrouping,
			Rules: []string{
				models.RuleAlphabeticalSorting,
				models.RuleGroupByLastName,
				models.RuleMaintainNameClusters,
				models.RuleMultiRoomDistribution,
			},
			Active: true,
		},
		{
			Name:        "Capacity Optimized",
			Description: "Sizes each group after its room's share of the total capacity.",
			Version:     builtinVersion,
			Type:        models.StrategyCapacityOptimization,
			Rules: []string{
				models.RuleRespectCapacityLimits,
				models.RuleMultiRoomDistribution,
				models.RuleBalanceLoad,
			},
		},
		{
			Name:        "Department Grouping",
			Description: "Keeps examinees of one department together, sorted by name within the department.",
			Version:     builtinVersion,
			Type:        models.StrategyDepartmentGrouping,
			Rules: []string{
				models.RuleGroupByDepartment,
				models.RuleAlphabeticalSorting,
				models.RuleRespectCapacityLimits,
			},
		},
	}
}
