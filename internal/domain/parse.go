package domain

import "strings"

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleZoe, RoleAdmin, RoleZeno:
		return r, nil
	}
	return "", Errorf(ErrValidation, "invalid role %q", s)
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TaskStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", Errorf(ErrValidation, "invalid task status %q", s)
}

func ParseAgentStatus(s string) (AgentStatus, error) {
	switch st := AgentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AgentOnline, AgentOffline, AgentWorking:
		return st, nil
	}
	return "", Errorf(ErrValidation, "invalid agent status %q", s)
}

func ParseDependencyType(s string) (DependencyType, error) {
	switch d := DependencyType(strings.ToLower(strings.TrimSpace(s))); d {
	case DepBlocks, DepParentChild:
		return d, nil
	case "parent_child", "parentchild":
		return DepParentChild, nil
	}
	return "", Errorf(ErrValidation, "invalid dependency type %q", s)
}

func ParseVoteType(s string) (VoteType, error) {
	switch v := VoteType(strings.ToLower(strings.TrimSpace(s))); v {
	case VoteUp, VoteDown, VoteVeto:
		return v, nil
	}
	return "", Errorf(ErrValidation, "invalid vote type %q", s)
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch p := ProjectStatus(strings.ToLower(strings.TrimSpace(s))); p {
	case ProjectActive, ProjectPaused:
		return p, nil
	}
	return "", Errorf(ErrValidation, "invalid project status %q", s)
}

func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch d := ReviewDecision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApproveAsTask, DecisionReject, DecisionEscalateToIdea:
		return d, nil
	}
	return "", Errorf(ErrValidation, "invalid review decision %q", s)
}

func ParseMessageType(s string) (MessageType, error) {
	if strings.TrimSpace(s) == "" {
		return MessageUser, nil
	}
	switch m := MessageType(strings.ToLower(strings.TrimSpace(s))); m {
	case MessageUser, MessageSystem, MessageDirective:
		return m, nil
	}
	return "", Errorf(ErrValidation, "invalid message type %q", s)
}

// NormalizeCapabilities lowercases and trims tags, dropping empties and duplicates.
func NormalizeCapabilities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
