package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// Scheduler verifies audit chains on a cron schedule and logs any break.
type Scheduler struct {
	cron     *cron.Cron
	verifier Verifier
	channels []string
}

// NewScheduler parses a five-field cron spec.
func NewScheduler(v Verifier, spec string, channels ...string) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		verifier: v,
		channels: channels,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running verification to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// RunOnce verifies every channel now.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, ch := range s.channels {
		seq, err := s.verifier.Verify(ctx, ch, 0)
		switch {
		case seq > 0:
			logging.Error("audit chain broken channel=%s seq=%d: %v", ch, seq, err)
		case err != nil:
			logging.Warn("audit verify channel=%s: %v", ch, err)
		default:
			logging.Debug("audit chain ok channel=%s", ch)
		}
	}
}
