package health

import (
	"context"
	"fmt"
)

// Pinger reports reachability of an external dependency. Both the pgx pool
// and the Redis-backed lexicon store satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker wraps a Pinger as a named readiness check.
func PingChecker(name string, p Pinger) Checker {
	return Checker{
		Name:  name,
		Check: p.Ping,
	}
}

// BreakerChecker reports failure while state() reads "open". State is a
// string so the check does not depend on the breaker package directly.
func BreakerChecker(name string, state func() string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if s := state(); s == "open" {
				return fmt.Errorf("circuit %s", s)
			}
			return nil
		},
	}
}
