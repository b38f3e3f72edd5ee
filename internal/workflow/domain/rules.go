package domain

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// CheckStart validates starting stage for a client.
// current is nil when no progression row exists. predecessor is the nearest
// active stage with a lower order_index, nil for the first stage; predecessorProgress
// is the client's row for it, nil when absent.
func CheckStart(current *ClientStage, predecessor *Stage, predecessorProgress *ClientStage) error {
	if predecessor != nil {
		if predecessorProgress == nil || predecessorProgress.Status == StageNotStarted {
			return SequenceViolation(predecessor.Name)
		}
	}
	if current != nil && current.Status != StageNotStarted {
		return InvalidTransition("stage already started")
	}
	return nil
}

// CheckComplete validates completing a stage. activityIDs lists every activity of
// the stage, required or optional; completed holds the ones the client finished.
func CheckComplete(current ClientStage, activityIDs []uuid.UUID, completed map[uuid.UUID]bool, openTasks int) error {
	if current.Status != StageInProgress {
		return InvalidTransition("only stages in progress can be completed")
	}
	remaining := 0
	for _, id := range activityIDs {
		if !completed[id] {
			remaining++
		}
	}
	if remaining > 0 {
		return IncompleteActivities(remaining)
	}
	if openTasks > 0 {
		return UnresolvedPendingTasks(openTasks)
	}
	return nil
}

// RevertTarget returns the status a revert moves current to.
// Reverting to not_started is further gated by CheckRevertToNotStarted.
func RevertTarget(current ClientStage) (StageStatus, error) {
	switch current.Status {
	case StageCompleted:
		return StageInProgress, nil
	case StageInProgress:
		return StageNotStarted, nil
	default:
		return "", InvalidTransition("stage is already pending")
	}
}

// CheckRevertToNotStarted refuses to reset a stage that still has checked activities.
func CheckRevertToNotStarted(completedActivities int) error {
	if completedActivities > 0 {
		return ActivitiesMustBeUnchecked(completedActivities)
	}
	return nil
}

// CheckToggle validates the stage window for an activity toggle.
// Unchecking is the only change allowed on a completed stage.
func CheckToggle(stageStatus StageStatus, unchecking bool) error {
	if stageStatus == StageCompleted && !unchecking {
		return StageAlreadyCompleted()
	}
	if stageStatus != StageInProgress && stageStatus != StageCompleted {
		return NotStarted()
	}
	return nil
}

// ActorMayPerform reports whether actor passes a profile gate. An empty allowed
// list is unrestricted; admins always pass.
func ActorMayPerform(actor Actor, allowed []uuid.UUID) bool {
	if len(allowed) == 0 || actor.IsAdmin() {
		return true
	}
	if actor.ProfileID == nil {
		return false
	}
	return slices.Contains(allowed, *actor.ProfileID)
}

// CheckResolve validates resolving task. The note text is checked first so an
// empty resolution fails the same way whatever the task's state.
func CheckResolve(task PendingTask, resolution string) error {
	if strings.TrimSpace(resolution) == "" {
		return Validation("resolution note is required")
	}
	if task.Status != TaskPending {
		return AlreadyResolved()
	}
	return nil
}

// CheckReopen validates reopening task.
func CheckReopen(task PendingTask) error {
	if task.Status != TaskResolved {
		return NotResolved()
	}
	return nil
}

// TaskGate returns the allowed profile list for a task: its assigned profile or nothing.
func TaskGate(task PendingTask) []uuid.UUID {
	if task.AssignedProfileID == nil {
		return nil
	}
	return []uuid.UUID{*task.AssignedProfileID}
}
