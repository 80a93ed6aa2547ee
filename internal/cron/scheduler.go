package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// IdleSweeper reclaims resources that have gone quiet. Implemented by the
// collaboration registry and the sandbox pool.
type IdleSweeper interface {
	SweepIdle(ttl time.Duration) int
}

// PersonaRefresher re-derives the AI participant's cached persona.
type PersonaRefresher interface {
	RefreshPersona(ctx context.Context) error
}

type Scheduler struct {
	idleTTL  time.Duration
	rooms    IdleSweeper
	sandbox  IdleSweeper
	persona  PersonaRefresher
	schedule *cron.Cron
}

func NewScheduler(idleTTL time.Duration, rooms, sandbox IdleSweeper, persona PersonaRefresher) *Scheduler {
	return &Scheduler{
		idleTTL: idleTTL,
		rooms:   rooms,
		sandbox: sandbox,
		persona: persona,
	}
}

// Start initializes cron tasks
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	// Idle sweep every 5 minutes
	_, err := c.AddFunc("0 */5 * * * *", func() {
		s.runIdleSweep()
	})
	if err != nil {
		log.Printf("Failed to create idle sweep cron job: %v", err)
		return
	}

	// Persona refresh nightly (12:00 AM)
	_, err = c.AddFunc("0 0 0 * * *", func() {
		s.runPersonaRefresh()
	})
	if err != nil {
		log.Printf("Failed to create persona refresh cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (idle sweep every 5m, persona refresh nightly)")
	c.Start()
	s.schedule = c
}

// Stop halts the scheduler. Running jobs finish their current invocation.
func (s *Scheduler) Stop() {
	if s.schedule != nil {
		s.schedule.Stop()
	}
}

func (s *Scheduler) runIdleSweep() {
	closed := 0
	if s.rooms != nil {
		closed += s.rooms.SweepIdle(s.idleTTL)
	}
	reclaimed := 0
	if s.sandbox != nil {
		reclaimed += s.sandbox.SweepIdle(s.idleTTL)
	}
	if closed > 0 || reclaimed > 0 {
		log.Printf("Idle sweep closed %d rooms, reclaimed %d sandbox instances", closed, reclaimed)
	}
}

func (s *Scheduler) runPersonaRefresh() {
	if s.persona == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.persona.RefreshPersona(ctx); err != nil {
		log.Printf("Persona refresh failed: %v", err)
		return
	}
	log.Println("Persona refresh completed at:", time.Now().Format(time.RFC1123))
}
