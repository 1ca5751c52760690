package tutoring

import (
	"context"
	"fmt"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// recoverOperation reports a panic in op as an error.
func recoverOperation(op func(context.Context, *scope) error) func(context.Context, *scope) error {
	return func(ctx context.Context, s *scope) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("session operation panicked", "session", s.session.ID, "panic", recovered)
				err = fmt.Errorf("session operation panicked: %v", recovered)
			}
		}()
		return op(ctx, s)
	}
}
