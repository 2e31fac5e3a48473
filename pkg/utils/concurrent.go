// nolint: revive
package utils

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

func SafelyRun(function func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w\n%s", e, string(debug.Stack()))
			} else {
				err = fmt.Errorf("unknown panic\n%s", string(debug.Stack()))
			}
		}
	}()

	function()

	return nil
}

func SafelyGo(function func()) {
	go func() {
		if err := SafelyRun(function); err != nil {
			logger.Errorf(context.Background(), "goroutine panic: %+v", err)
		}
	}()
}
