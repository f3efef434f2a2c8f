// Package rumination ties the rumination domain into the audit recorder.
package rumination

import (
	"context"
	"fmt"

	"ruminster/internal/rumination/models"
	"ruminster/internal/rumination/store"
)

// LoggingStrategy snapshots rumination mutations, audience set included,
// into the rumination log table.
type LoggingStrategy struct {
	logs store.LogStore
}

// NewLoggingStrategy builds the audit strategy for ruminations.
func NewLoggingStrategy(logs store.LogStore) *LoggingStrategy {
	return &LoggingStrategy{logs: logs}
}

// EntityType implements audit.Strategy.
func (s *LoggingStrategy) EntityType() string {
	return models.EntityType
}

// Log implements audit.Strategy.
func (s *LoggingStrategy) Log(ctx context.Context, entity any, operation string) error {
	entry, ok := entity.(*models.Rumination)
	if !ok {
		return fmt.Errorf("rumination strategy: unexpected entity %T", entity)
	}
	return s.logs.AppendLog(ctx, models.NewRuminationLog(entry, operation))
}
