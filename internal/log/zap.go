// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package log adapts go.uber.org/zap to pion/logging.
package log

import (
	"github.com/pion/logging"
	"go.uber.org/zap"
)

// ZapFactory is a logging.LoggerFactory based on go.uber.org/zap. Every
// scope becomes a "scope" field on a child logger.
type ZapFactory struct {
	logger *zap.Logger
}

// NewZapFactory creates a LoggerFactory from a zap.Logger. A nil logger
// drops everything.
func NewZapFactory(logger *zap.Logger) *ZapFactory {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ZapFactory{logger: logger}
}

// NewLogger returns a logger scoped to scope.
func (f *ZapFactory) NewLogger(scope string) logging.LeveledLogger {
	return &Zap{logger: f.logger.With(zap.String("scope", scope)).Sugar()}
}

// Zap is a logging.LeveledLogger based on a zap.SugaredLogger.
type Zap struct {
	logger *zap.SugaredLogger
}

// zap has no trace level, trace goes to debug.
func (l *Zap) Trace(msg string)                          { l.logger.Debug(msg) }
func (l *Zap) Tracef(format string, args ...interface{}) { l.logger.Debugf(format, args...) }
func (l *Zap) Debug(msg string)                          { l.logger.Debug(msg) }
func (l *Zap) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }
func (l *Zap) Info(msg string)                           { l.logger.Info(msg) }
func (l *Zap) Infof(format string, args ...interface{})  { l.logger.Infof(format, args...) }
func (l *Zap) Warn(msg string)                           { l.logger.Warn(msg) }
func (l *Zap) Warnf(format string, args ...interface{})  { l.logger.Warnf(format, args...) }
func (l *Zap) Error(msg string)                          { l.logger.Error(msg) }
func (l *Zap) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }
