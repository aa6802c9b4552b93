// Package xlog centralizes the module's zap logger construction so store
// backends and the tree package default identically when no logger is
// supplied.
package xlog

import "go.uber.org/zap"

// Or returns log if non-nil, otherwise a no-op logger.
func Or(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
