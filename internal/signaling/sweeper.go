package signaling

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweep removes sessions older than the maximum age, closing their live
// connections first. In GraceFromActivity mode it also removes sessions that
// have had no connection and no activity for longer than the disconnect
// grace. It returns the number of sessions removed.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	total := 0
	for _, s := range c.shards {
		var n int
		if err := s.do(ctx, func() { n = s.sweep(s.now()) }); err != nil {
			return total, err
		}
		total += n
	}
	metricSweepMS.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return total, nil
}

func (s *shard) sweep(now time.Time) int {
	n := 0
	s.reg.forEach(func(sess *session) {
		switch {
		case now.Sub(sess.createdAt) > s.opts.MaxAge:
			s.evict(sess, "expired", "session expired")
			n++
		case s.opts.GraceFrom == GraceFromActivity && sess.idle() && s.graceElapsed(sess, now):
			s.remove(sess, "idle")
			n++
		}
	})
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("module", "signaling").Msg("sweep")
				}
				return
			}
			if n > 0 {
				log.Info().Str("module", "signaling").Int("removed", n).Msg("sweep")
			}
		}
	}
}
