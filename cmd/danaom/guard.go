package main

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
)

// guarded runs one command line with panic recovery and a log line per
// command. Only the command word is logged since arguments can carry passwords.
func (sh *shell) guarded(ctx context.Context, line string) (quit bool) {
	start := time.Now()
	cmd := ""
	if f := strings.Fields(line); len(f) > 0 {
		cmd = f[0]
	}
	defer func() {
		if r := recover(); r != nil {
			sh.log.Error("panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
				zap.String("command", cmd),
			)
			sh.printf("internal error\n")
			quit = false
		}
		if cmd != "" {
			sh.log.Debug("command", zap.String("command", cmd), zap.Duration("dur", time.Since(start)))
		}
	}()
	return sh.exec(ctx, line)
}
