// Package logging wires the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
)

// New builds the application logger. LOG_MODE=development switches to
// human-readable console output.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
