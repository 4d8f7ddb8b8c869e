package health

import (
	"context"
	"fmt"
	"time"

	"handoff/signal/internal/iceproxy"
	"handoff/signal/internal/signaling"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Checker probes the coordinator shards and, when one is configured, the
// TURN provider.
type Checker struct {
	Coord   *signaling.Coordinator
	TURN    iceproxy.Provider
	Timeout time.Duration
}

// CheckAll runs all health checks and returns combined status
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	checks := []CheckResult{c.checkCoordinator(ctx)}
	if c.TURN != nil {
		checks = append(checks, c.checkTURN(ctx))
	}

	allOK := true
	for _, r := range checks {
		if !r.OK {
			allOK = false
		}
	}
	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

// Ready reports whether every shard answers within the timeout. TURN is
// left out since signaling works without it.
func (c *Checker) Ready(ctx context.Context) CheckResult {
	return c.checkCoordinator(ctx)
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}

func (c *Checker) checkCoordinator(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "coordinator"}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	counts, err := c.Coord.Counts(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("shards unresponsive: %v", err)
		return result
	}
	result.OK = len(counts) > 0
	if !result.OK {
		result.Error = "no shards"
	}
	return result
}

func (c *Checker) checkTURN(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "turn_" + c.TURN.Name()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	servers, err := c.TURN.TURNServers(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	if len(servers) == 0 {
		result.Error = "no turn servers returned"
		return result
	}
	result.OK = true
	return result
}
