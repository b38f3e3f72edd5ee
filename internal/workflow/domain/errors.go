package domain

import (
	"errors"
	"fmt"
	"strings"

	"indor_desk/platform/apperr"
)

// Sentinels for the workflow failure taxonomy. Every constructor below wraps one
// of these in an *apperr.Error, so callers can use errors.Is as well as the code.
var (
	ErrSequenceViolation         = errors.New("sequence violation")
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrIncompleteActivities      = errors.New("incomplete activities")
	ErrUnresolvedPendingTasks    = errors.New("unresolved pending tasks")
	ErrActivitiesMustBeUnchecked = errors.New("activities must be unchecked")
	ErrStageNotFound             = errors.New("stage not found")
	ErrNotFound                  = errors.New("not found")
	ErrStageNotStarted           = errors.New("stage not started")
	ErrStageAlreadyCompleted     = errors.New("stage already completed")
	ErrProfileNotAllowed         = errors.New("profile not allowed")
	ErrValidation                = errors.New("validation error")
	ErrAlreadyResolved           = errors.New("already resolved")
	ErrNotResolved               = errors.New("not resolved")
)

const (
	CodeSequenceViolation         = "sequence_violation"
	CodeInvalidTransition         = "invalid_transition"
	CodeIncompleteActivities      = "incomplete_activities"
	CodeUnresolvedPendingTasks    = "unresolved_pending_tasks"
	CodeActivitiesMustBeUnchecked = "activities_must_be_unchecked"
	CodeStageNotFound             = "stage_not_found"
	CodeNotFound                  = "not_found"
	CodeStageNotStarted           = "stage_not_started"
	CodeStageAlreadyCompleted     = "stage_already_completed"
	CodeProfileNotAllowed         = "profile_not_allowed"
	CodeValidation                = "validation_error"
	CodeAlreadyResolved           = "already_resolved"
	CodeNotResolved               = "not_resolved"
)

func conflict(sentinel error, code, msg string) error {
	return apperr.Wrap(apperr.KindConflict, msg, sentinel).WithCode(code)
}

func SequenceViolation(predecessor string) error {
	return conflict(ErrSequenceViolation, CodeSequenceViolation,
		fmt.Sprintf("previous stage %q must be started first", predecessor))
}

func InvalidTransition(msg string) error {
	return conflict(ErrInvalidTransition, CodeInvalidTransition, msg)
}

func IncompleteActivities(remaining int) error {
	return conflict(ErrIncompleteActivities, CodeIncompleteActivities,
		fmt.Sprintf("all activities must be completed before completing the stage (%d remaining)", remaining))
}

func UnresolvedPendingTasks(count int) error {
	return conflict(ErrUnresolvedPendingTasks, CodeUnresolvedPendingTasks,
		fmt.Sprintf("stage has %d unresolved pending task(s)", count))
}

func ActivitiesMustBeUnchecked(count int) error {
	return conflict(ErrActivitiesMustBeUnchecked, CodeActivitiesMustBeUnchecked,
		fmt.Sprintf("uncheck all completed activities (%d) before reverting the stage to pending", count))
}

func NotStarted() error {
	return conflict(ErrStageNotStarted, CodeStageNotStarted, "stage has not been started for this client")
}

func StageAlreadyCompleted() error {
	return conflict(ErrStageAlreadyCompleted, CodeStageAlreadyCompleted,
		"stage is completed; only unchecking an activity is allowed")
}

func AlreadyResolved() error {
	return conflict(ErrAlreadyResolved, CodeAlreadyResolved, "pending task is already resolved")
}

func NotResolved() error {
	return conflict(ErrNotResolved, CodeNotResolved, "only resolved pending tasks can be reopened")
}

// StageNotFound reports a missing progression row where one is required.
func StageNotFound() error {
	return apperr.Wrap(apperr.KindNotFound, "client has no progress on this stage", ErrStageNotFound).
		WithCode(CodeStageNotFound)
}

// NotFound reports a missing client, stage, activity or task.
func NotFound(what string) error {
	return apperr.Wrap(apperr.KindNotFound, what+" not found", ErrNotFound).WithCode(CodeNotFound)
}

func Validation(msg string) error {
	return apperr.Wrap(apperr.KindValidation, msg, ErrValidation).WithCode(CodeValidation)
}

// ActivityProfileNotAllowed lists the profiles that may toggle the activity.
func ActivityProfileNotAllowed(profileNames []string) error {
	msg := "only the following profiles may change this activity: " + strings.Join(profileNames, ", ")
	return apperr.Wrap(apperr.KindForbidden, msg, ErrProfileNotAllowed).
		WithCode(CodeProfileNotAllowed).
		WithDetails(map[string]any{"allowed_profiles": profileNames})
}

// TaskProfileNotAllowed names the profile assigned to the task.
func TaskProfileNotAllowed(profileName string) error {
	msg := fmt.Sprintf("only profile %q may resolve this pending task", profileName)
	return apperr.Wrap(apperr.KindForbidden, msg, ErrProfileNotAllowed).
		WithCode(CodeProfileNotAllowed).
		WithDetails(map[string]any{"allowed_profiles": []string{profileName}})
}
