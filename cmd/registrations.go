package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// registrations returns the built-in self-check suites.
func registrations() []*types.SuiteHandle {
	return []*types.SuiteHandle{
		filesystemSuite(),
		concurrencySuite(),
		timeoutSuite(),
	}
}

func filesystemSuite() *types.SuiteHandle {
	return types.DeclareSuite("filesystem", func(s *types.Suite) {
		workdir := types.NewFixture(s,
			func(context.Context) (string, error) {
				return os.MkdirTemp("", "op-testengine-")
			},
			func(_ context.Context, dir string) error {
				return os.RemoveAll(dir)
			},
		)

		s.Test("write_read", func(ctx context.Context) error {
			dir, err := workdir.Get(ctx)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, "check.txt")
			if err := os.WriteFile(path, []byte("check"), 0644); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if string(data) != "check" {
				return types.Assertf("read %q, want %q", data, "check")
			}
			return nil
		})
		s.Test("missing_file", func(ctx context.Context) error {
			dir, err := workdir.Get(ctx)
			if err != nil {
				return err
			}
			if _, err := os.Stat(filepath.Join(dir, "absent")); !os.IsNotExist(err) {
				return types.Assertf("expected a not-exist error, got %v", err)
			}
			return nil
		})
	}, types.WithDisplayName("Filesystem"))
}

func concurrencySuite() *types.SuiteHandle {
	return types.DeclareSuite("concurrency", func(s *types.Suite) {
		for i := 0; i < 8; i++ {
			s.Test(types.Indexed("sleep", i), func(ctx context.Context) error {
				select {
				case <-time.After(time.Duration(10*(i+1)) * time.Millisecond):
					return nil
				case <-ctx.Done():
					return context.Cause(ctx)
				}
			})
		}
		s.Test("repeated", func(context.Context) error { return nil }, types.WithInvocationCount(3))
	}, types.WithCompartment(types.Parallel(4)))
}

func timeoutSuite() *types.SuiteHandle {
	return types.DeclareSuite("timeouts", func(s *types.Suite) {
		s.Test("within_deadline", func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			if !ok {
				return types.Assertf("expected a deadline on the test context")
			}
			if remaining := time.Until(deadline); remaining <= 0 {
				return fmt.Errorf("deadline already passed by %s", -remaining)
			}
			return nil
		})
	}, types.WithTimeout(5*time.Second))
}
