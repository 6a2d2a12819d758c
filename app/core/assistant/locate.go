package assistant

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"

	"taskmaster/app/core/orchestrator/task"
)

var taskRefPattern = regexp.MustCompile(`(?i)#(\d+)|task\s+(\d+)`)

// Locator resolves a natural-language task reference to at most one task.
type Locator struct {
	store *task.Store
	limit int
}

func NewLocator(store *task.Store, limit int) *Locator {
	if limit <= 0 {
		limit = 5
	}
	return &Locator{store: store, limit: limit}
}

// Locate first honors an explicit "#12" or "task 12" reference; an explicit
// reference short-circuits keyword search even when it resolves to nothing.
// Otherwise it runs a conjunctive keyword search and disambiguates multiple
// hits by recency.
func (l *Locator) Locate(ctx context.Context, message string, ownerID int64) (task.Task, bool, error) {
	if match := taskRefPattern.FindStringSubmatch(message); match != nil {
		ref := match[1]
		if ref == "" {
			ref = match[2]
		}
		taskID, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return task.Task{}, false, nil
		}
		found, err := l.store.Get(ctx, taskID, ownerID)
		if err == sql.ErrNoRows {
			return task.Task{}, false, nil
		}
		if err != nil {
			return task.Task{}, false, err
		}
		return found, true, nil
	}

	keywords := ExtractKeywords(message)
	if len(keywords) == 0 {
		return task.Task{}, false, nil
	}

	hits, err := l.store.SearchByKeywords(ctx, ownerID, keywords, l.limit)
	if err != nil {
		return task.Task{}, false, err
	}
	if len(hits) == 0 {
		return task.Task{}, false, nil
	}
	// Hits come back newest first; the head is the recency tie-break.
	return hits[0], true, nil
}
