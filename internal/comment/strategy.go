// Package comment ties the comment domain into the audit recorder.
package comment

import (
	"context"
	"fmt"

	"ruminster/internal/comment/models"
	"ruminster/internal/comment/store"
)

// LoggingStrategy snapshots comment mutations into the comment log table.
type LoggingStrategy struct {
	logs store.LogStore
}

// NewLoggingStrategy builds the audit strategy for comments.
func NewLoggingStrategy(logs store.LogStore) *LoggingStrategy {
	return &LoggingStrategy{logs: logs}
}

// EntityType implements audit.Strategy.
func (s *LoggingStrategy) EntityType() string {
	return models.EntityType
}

// Log implements audit.Strategy.
func (s *LoggingStrategy) Log(ctx context.Context, entity any, operation string) error {
	c, ok := entity.(*models.Comment)
	if !ok {
		return fmt.Errorf("comment strategy: unexpected entity %T", entity)
	}
	return s.logs.AppendLog(ctx, models.NewCommentLog(c, operation))
}
