package models

import "time"

type StrategyType string

const (
	StrategyRoundRobin           StrategyType = "round_robin"
	StrategyAlphabeticalGrouping StrategyType = "alphabetical_grouping"
	StrategyCapacityOptimization StrategyType = "capacity_optimization"
	StrategyDepartmentGrouping   StrategyType = "department_grouping"
)

func (t StrategyType) Valid() bool {
	switch t {
	case StrategyRoundRobin, StrategyAlphabeticalGrouping, StrategyCapacityOptimization, StrategyDepartmentGrouping:
		return true
	}
	return false
}

// Rule tokens. They describe a strategy; the planner dispatches on Type.
const (
	RuleAlphabeticalSorting   = "alphabetical_sorting"
	RuleGroupByLastName       = "group_by_last_name"
	RuleMaintainNameClusters  = "maintain_name_clusters"
	RuleMultiRoomDistribution = "multi_room_distribution"
	RuleRespectCapacityLimits = "respect_capacity_limits"
	RuleBalanceLoad           = "balance_load"
	RuleGroupByDepartment     = "group_by_department"
)

type Strategy struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Version     string       `json:"version"`
	Type        StrategyType `json:"type"`
	Rules       []string     `json:"rules"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a copy that does not share the rule slice.
func (s *Strategy) Clone() *Strategy {
	c := *s
	c.Rules = append([]string(nil), s.Rules...)
	return &c
}
