package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// DefaultCompleteThreshold is the share of children with data that must be
// complete for an aggregate to be complete.
const DefaultCompleteThreshold = 0.9

// HierarchyService folds child statuses into class, school, group and district
// summaries. The same fold runs at every level.
type HierarchyService struct {
	threshold float64
	clock     func() time.Time
}

// NewHierarchyService returns a service using threshold, falling back to
// DefaultCompleteThreshold when it is outside (0,1].
func NewHierarchyService(threshold float64) *HierarchyService {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultCompleteThreshold
	}
	return &HierarchyService{threshold: threshold, clock: func() time.Time { return time.Now().UTC() }}
}

// Threshold reports the configured completion threshold.
func (h *HierarchyService) Threshold() float64 { return h.threshold }

// FoldUp recomputes one parent from the full current set of its children.
func (h *HierarchyService) FoldUp(level models.Level, id, grade string, children []models.ChildStatus) (models.Summary, error) {
	summary := models.Summary{
		Level:         level,
		ID:            id,
		Grade:         grade,
		TotalChildren: len(children),
		ChildIDs:      make([]string, 0, len(children)),
		LastComputed:  h.clock(),
	}

	seen := make(map[string]struct{}, len(children))
	for _, child := range children {
		if _, dup := seen[child.ID]; dup {
			return summary, appErrors.Clone(appErrors.ErrAggregateChildMismatch,
				fmt.Sprintf("%s %s lists child %s twice", level, id, child.ID))
		}
		seen[child.ID] = struct{}{}
		summary.ChildIDs = append(summary.ChildIDs, child.ID)

		switch child.Status {
		case models.CompletionComplete:
			summary.Complete++
		case models.CompletionIncomplete:
			summary.Incomplete++
		case models.CompletionNotStarted:
			summary.NotStarted++
		case models.CompletionError:
			// The child is counted by its data but marks the parent stale.
			summary.Stale = true
			if child.HasData {
				summary.Incomplete++
			} else {
				summary.NotStarted++
			}
		default:
			return summary, appErrors.Clone(appErrors.ErrAggregateChildMismatch,
				fmt.Sprintf("%s %s: child %s has unknown status %q", level, id, child.ID, child.Status))
		}
		if child.HasData {
			summary.WithData++
		}
		summary.TerminationAlerts += child.Alerts
	}
	sort.Strings(summary.ChildIDs)

	if summary.Complete+summary.Incomplete+summary.NotStarted != summary.TotalChildren {
		return summary, appErrors.Clone(appErrors.ErrAggregateChildMismatch,
			fmt.Sprintf("%s %s: counts do not sum to %d children", level, id, summary.TotalChildren))
	}

	if summary.WithData == 0 {
		summary.Status = models.CompletionNotStarted
		return summary, nil
	}
	fraction := float64(summary.Complete) / float64(summary.WithData)
	summary.CompletionPercentage = fraction * 100
	if fraction >= h.threshold {
		summary.Status = models.CompletionComplete
	} else {
		summary.Status = models.CompletionIncomplete
	}
	return summary, nil
}

// ErrorSummary is written in place of a summary that could not be folded, so
// readers see an error rather than missing data.
func (h *HierarchyService) ErrorSummary(level models.Level, id, grade string, err error) models.Summary {
	return models.Summary{
		Level:        level,
		ID:           id,
		Grade:        grade,
		Status:       models.CompletionError,
		Stale:        true,
		ErrorCode:    appErrors.FromError(err).Code,
		ChildIDs:     []string{},
		LastComputed: h.clock(),
	}
}
