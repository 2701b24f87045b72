package wfm

import (
	"sort"

	"github.com/hashicorp/go-hclog"
)

// HCLogger adapts an hclog.Logger to Logger.
type HCLogger struct {
	logger hclog.Logger
}

// NewHCLogger wraps logger. A nil logger discards everything.
func NewHCLogger(logger hclog.Logger) *HCLogger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &HCLogger{logger: logger}
}

// Underlying returns the wrapped hclog.Logger.
func (l *HCLogger) Underlying() hclog.Logger {
	return l.logger
}

func (l *HCLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, flatten(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, flatten(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, flatten(fields)...)
}

// flatten turns fields into hclog key/value pairs in key order.
func flatten(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	return args
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
