// Package sweeper runs the expired-offer sweep on a cron schedule so lapsed
// offers are demoted and the next waitlist entry promoted without any user
// action.
package sweeper

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/communitycal/bookingcore/internal/service"
)

type Sweeper struct {
	cron        *cron.Cron
	waitlistSvc service.WaitlistService
	spec        string
}

func New(spec string, waitlistSvc service.WaitlistService) *Sweeper {
	return &Sweeper{
		cron:        cron.New(),
		waitlistSvc: waitlistSvc,
		spec:        spec,
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[Sweeper] started, schedule %q", s.spec)
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Sweeper] stopped")
}

func (s *Sweeper) run() {
	promoted, err := s.waitlistSvc.SweepExpiredOffers(context.Background(), nil)
	if err != nil {
		log.Printf("[Sweeper] sweep failed: %v", err)
		return
	}
	if len(promoted) > 0 {
		log.Printf("[Sweeper] promoted %d claim(s)", len(promoted))
	}
}
