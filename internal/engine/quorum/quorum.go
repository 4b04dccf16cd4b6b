// Package quorum derives idea voting thresholds from network activity.
package quorum

import (
	"strconv"
	"strings"
)

const (
	MinQuorum   = 5
	MinApproval = 5
	MinVeto     = 3

	DefaultWindowDays = 7
)

// Thresholds is the snapshot stored on an idea at creation.
type Thresholds struct {
	ActiveAgents int `json:"active_agents"`
	Quorum       int `json:"quorum"`
	Approval     int `json:"approval"`
	Veto         int `json:"veto"`
}

// Calculate rounds up at each stage and applies the floors.
func Calculate(activeAgents int) Thresholds {
	if activeAgents < 0 {
		activeAgents = 0
	}
	q := max(MinQuorum, ceilPercent(activeAgents, 33))
	return Thresholds{
		ActiveAgents: activeAgents,
		Quorum:       q,
		Approval:     max(MinApproval, ceilPercent(q, 50)),
		Veto:         max(MinVeto, ceilPercent(q, 33)),
	}
}

// ceilPercent returns ceil(n*pct/100) in integer arithmetic. The float form
// gives ceil(100*0.33) = 34.
func ceilPercent(n, pct int) int {
	return (n*pct + 99) / 100
}

// ParseWindowDays falls back to the default for missing, malformed or
// non-positive values.
func ParseWindowDays(raw string, ok bool) int {
	if !ok {
		return DefaultWindowDays
	}
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days <= 0 {
		return DefaultWindowDays
	}
	return days
}
