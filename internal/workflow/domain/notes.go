package domain

import (
	"fmt"
	"strings"

	"indor_desk/platform/sanitize"
)

// ResolutionNotePrefix marks notes written when a pending task is resolved.
const ResolutionNotePrefix = "[Resolução de Pendência] "

const (
	taskTitleMaxRunes = 100
	taskTitleEllipsis = "..."
)

func StageStartedNote(stage, actor string) string {
	return fmt.Sprintf("Stage \"%s\" started by %s.", stage, actor)
}

func StageCompletedNote(stage, actor string) string {
	return fmt.Sprintf("Stage \"%s\" completed by %s.", stage, actor)
}

func StageReopenedNote(stage, actor string) string {
	return fmt.Sprintf("Stage \"%s\" reopened (reverted from completed to in progress) by %s.", stage, actor)
}

func StageRevertedNote(stage, actor string) string {
	return fmt.Sprintf("Stage \"%s\" reverted to pending by %s.", stage, actor)
}

// ActivityToggledNote builds the single note written per toggle. The reopen line
// is added when the uncheck cascaded into the stage; the observation only
// accompanies a completion.
func ActivityToggledNote(activity, actor string, completed, stageReopened bool, observation string) string {
	var b strings.Builder
	if completed {
		fmt.Fprintf(&b, "Activity \"%s\" completed by %s.", activity, actor)
	} else {
		fmt.Fprintf(&b, "Activity \"%s\" unchecked by %s.", activity, actor)
	}
	if stageReopened {
		b.WriteString("\nStage reopened automatically.")
	}
	if completed {
		if obs := strings.TrimSpace(observation); obs != "" {
			b.WriteString("\n\nObservation: ")
			b.WriteString(obs)
		}
	}
	return b.String()
}

func TaskReopenedNote(title string) string {
	return fmt.Sprintf("Pending task reopened: \"%s\"", title)
}

// StageReopenedByTaskNote is the second note of a task reopen that cascaded into its stage.
const StageReopenedByTaskNote = "Stage reopened automatically due to pending-task reopening."

func ResolutionNote(text string) string {
	return ResolutionNotePrefix + strings.TrimSpace(text)
}

// TaskTitleFromNote derives a pending-task title from the note that created it.
func TaskTitleFromNote(content string) string {
	return sanitize.Truncate(strings.TrimSpace(content), taskTitleMaxRunes, taskTitleEllipsis)
}
