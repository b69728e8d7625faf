package store

import (
	"context"
	"log/slog"
	"time"
)

// DispatchLogEvent describes one payload going through the Dispatcher.
type DispatchLogEvent struct {
	StoreID  ID
	Method   string
	Args     int
	Depth    int
	Duration time.Duration
	Err      error
}

// EvaluationLogEvent describes a selector evaluation.
type EvaluationLogEvent struct {
	Engine   string
	Expr     string
	Store    string
	Duration time.Duration
	Err      error
}

// ErrorLogEvent describes a failure that has no caller to return to, such as
// a listener read failing mid-notification or an activity hook error.
type ErrorLogEvent struct {
	StoreID ID
	Store   string
	Op      string
	Err     error
}

// Logger records runtime events.
type Logger interface {
	LogDispatch(DispatchLogEvent)
	LogEvaluation(EvaluationLogEvent)
	LogError(ErrorLogEvent)
}

// LoggerFuncs adapts plain functions to Logger. Nil fields are skipped.
type LoggerFuncs struct {
	Dispatch   func(DispatchLogEvent)
	Evaluation func(EvaluationLogEvent)
	Error      func(ErrorLogEvent)
}

// LogDispatch implements Logger.
func (f LoggerFuncs) LogDispatch(event DispatchLogEvent) {
	if f.Dispatch != nil {
		f.Dispatch(event)
	}
}

// LogEvaluation implements Logger.
func (f LoggerFuncs) LogEvaluation(event EvaluationLogEvent) {
	if f.Evaluation != nil {
		f.Evaluation(event)
	}
}

// LogError implements Logger.
func (f LoggerFuncs) LogError(event ErrorLogEvent) {
	if f.Error != nil {
		f.Error(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogDispatch(DispatchLogEvent)     {}
func (noopLogger) LogEvaluation(EvaluationLogEvent) {}
func (noopLogger) LogError(ErrorLogEvent)           {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}

// SlogLogger writes events to logger. Dispatches and evaluations log at
// debug level, failures at error level.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogDispatch(event DispatchLogEvent) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("store_id", event.StoreID.String()),
		slog.String("method", event.Method),
		slog.Int("args", event.Args),
		slog.Int("depth", event.Depth),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, "store dispatch", attrs...)
}

func (l slogLogger) LogEvaluation(event EvaluationLogEvent) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("store", event.Store),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, "store evaluation", attrs...)
}

func (l slogLogger) LogError(event ErrorLogEvent) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, "store error",
		slog.String("store_id", event.StoreID.String()),
		slog.String("store", event.Store),
		slog.String("op", event.Op),
		slog.Any("error", event.Err),
	)
}

func loggerOrNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}
