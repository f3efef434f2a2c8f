// Package relation ties the relation domain into the audit recorder.
package relation

import (
	"context"
	"fmt"

	"ruminster/internal/relation/models"
	"ruminster/internal/relation/store"
)

// LoggingStrategy snapshots relation mutations into the relation log table.
type LoggingStrategy struct {
	logs store.LogStore
}

// NewLoggingStrategy builds the audit strategy for relations.
func NewLoggingStrategy(logs store.LogStore) *LoggingStrategy {
	return &LoggingStrategy{logs: logs}
}

// EntityType implements audit.Strategy.
func (s *LoggingStrategy) EntityType() string {
	return models.EntityType
}

// Log implements audit.Strategy.
func (s *LoggingStrategy) Log(ctx context.Context, entity any, operation string) error {
	rel, ok := entity.(*models.UserRelation)
	if !ok {
		return fmt.Errorf("relation strategy: unexpected entity %T", entity)
	}
	return s.logs.AppendLog(ctx, models.NewRelationLog(rel, operation))
}
