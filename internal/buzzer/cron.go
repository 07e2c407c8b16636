package buzzer

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/tally-clock/internal/logic"
)

// nextBuzz computes the wall-clock time of the next scheduled buzz from the
// cron form of the schedule. The parsed schedule is cached until the expression changes.
type nextBuzz struct {
	mu    sync.Mutex
	spec  string
	sched cron.Schedule
}

// at returns the start of the next scheduled minute as seen at now. A
// minute whose second 0 is exactly now still counts as upcoming, matching
// logic.Countdown.
func (n *nextBuzz) at(now time.Time, c logic.Config) (time.Time, error) {
	spec := fmt.Sprintf("CRON_TZ=%s %s", now.Location(), logic.CronSpec(c.StartMinute, c.BuzzInterval))

	n.mu.Lock()
	defer n.mu.Unlock()
	if spec != n.spec {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse schedule %q: %w", spec, err)
		}
		n.spec, n.sched = spec, sched
	}
	return n.sched.Next(now.Add(-time.Second)), nil
}
