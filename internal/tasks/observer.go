package tasks

import (
	"context"
	"errors"
	"log/slog"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/taskgraph"
)

// observer logs task transitions and feeds the metrics recorder.
type observer struct {
	buildID  string
	recorder metrics.Recorder
}

func (o *observer) TaskStarted(name string) {
	slog.Debug("Task started", logfields.Task(name), logfields.BuildID(o.buildID))
}

func (o *observer) TaskFinished(res taskgraph.Result) {
	attrs := []slog.Attr{logfields.Task(res.Task), logfields.BuildID(o.buildID)}
	label := resultLabel(res)
	switch res.Status {
	case taskgraph.StatusSucceeded:
		o.recorder.ObserveTaskDuration(res.Task, res.Duration)
		slog.LogAttrs(context.Background(), slog.LevelInfo, "Task finished", append(attrs, logfields.Duration(res.Duration))...)
	case taskgraph.StatusFailed:
		o.recorder.ObserveTaskDuration(res.Task, res.Duration)
		attrs = append(attrs, logfields.Duration(res.Duration), logfields.Error(res.Err))
		if ce, ok := ferrors.AsClassified(res.Err); ok {
			attrs = append(attrs, slog.String("category", string(ce.Category())))
		}
		slog.LogAttrs(context.Background(), slog.LevelError, "Task failed", attrs...)
	case taskgraph.StatusSkipped:
		slog.LogAttrs(context.Background(), slog.LevelDebug, "Task skipped", append(attrs, logfields.Error(res.Err))...)
	}
	o.recorder.IncTaskResult(res.Task, label)
}

func resultLabel(res taskgraph.Result) metrics.ResultLabel {
	switch res.Status {
	case taskgraph.StatusSucceeded:
		return metrics.ResultSuccess
	case taskgraph.StatusFailed:
		if errors.Is(res.Err, context.Canceled) {
			return metrics.ResultCanceled
		}
		return metrics.ResultFailed
	default:
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return metrics.ResultCanceled
		}
		return metrics.ResultSkipped
	}
}
