package engine

import "nexus/internal/domain"

// CheckTaskTransition validates a status edge against the lifecycle table.
// Self-transitions are always allowed. Archiving is allowed from any state
// except Archived itself; privilege for it is checked by the caller.
func CheckTaskTransition(cur, next domain.TaskStatus, blockedFrom *domain.TaskStatus) error {
	if cur == next {
		return nil
	}
	if next == domain.TaskArchived && cur != domain.TaskArchived {
		return nil
	}
	ok := false
	switch cur {
	case domain.TaskOpen:
		return domain.Errorf(domain.ErrInvalidTransition, "use claim to move open task to %s", next)
	case domain.TaskClaimed:
		ok = next == domain.TaskInProgress || next == domain.TaskBlocked
	case domain.TaskInProgress:
		ok = next == domain.TaskReview || next == domain.TaskBlocked
	case domain.TaskReview:
		ok = next == domain.TaskCompleted || next == domain.TaskBlocked
	case domain.TaskBlocked:
		ok = blockedFrom != nil && *blockedFrom == next
	}
	if !ok {
		return domain.Errorf(domain.ErrInvalidTransition, "invalid transition: %s -> %s", cur, next)
	}
	return nil
}
