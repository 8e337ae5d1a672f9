// Package logging builds the process-wide zap logger and hands out named
// category loggers. Every long-lived component gets its own category so log
// lines can be filtered per subsystem.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the agent. Components take a *zap.Logger and do
// not depend on this list, but the orchestrator wires them consistently.
const (
	CategorySession   = "session"
	CategoryScheduler = "scheduler"
	CategoryHumanLike = "humanlike"
	CategoryMode      = "mode"
	CategoryMemory    = "memory"
	CategoryTrigger   = "trigger"
	CategoryBehavior  = "behavior"
	CategoryJourney   = "journey"
	CategoryFollow    = "follow"
	CategoryPlatform  = "platform"
	CategoryStore     = "store"
	CategoryLLM       = "llm"
	CategoryTopics    = "topics"
	CategoryPatterns  = "patterns"
)

// Config controls logger construction.
type Config struct {
	Verbose bool   // debug level instead of info
	File    string // optional log file path; empty means stderr only
	Console bool   // human-readable console encoder instead of JSON
}

// New builds the root logger. Callers derive category loggers with Named.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Verbose {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Console {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core), nil
}

// Named derives a category logger from the root logger. A nil root yields a
// no-op logger so components can be constructed bare in tests.
func Named(root *zap.Logger, category string) *zap.Logger {
	if root == nil {
		return zap.NewNop()
	}
	return root.Named(category)
}
