// Package common holds the structured pipeline-stage logging helpers shared
// by every component (ingestion, summarizer, retrieval, notification). A
// "stage" is the component (e.g. "ChunkManager", "Notify"); an "action" is
// the specific step within it (e.g. "flush_batch", "skip_below_threshold").
package common

import (
	"context"

	"github.com/dfroberg/coursepilot/internal/logger"
	"github.com/dfroberg/coursepilot/internal/utils"
)

// PipelineInfo logs an info-level pipeline event with stage/action fields.
func PipelineInfo(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logPipeline(ctx, "info", stage, action, fields)
}

// PipelineWarn logs a warn-level pipeline event.
func PipelineWarn(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logPipeline(ctx, "warn", stage, action, fields)
}

// PipelineError logs an error-level pipeline event.
func PipelineError(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logPipeline(ctx, "error", stage, action, fields)
}

func logPipeline(ctx context.Context, level, stage, action string, fields map[string]interface{}) {
	entry := logger.FromContext(ctx).WithField("stage", stage).WithField("action", action)
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = utils.SanitizeForLog(s)
		}
		entry = entry.WithField(k, v)
	}
	switch level {
	case "warn":
		entry.Warn(action)
	case "error":
		entry.Error(action)
	default:
		entry.Info(action)
	}
}
