package cron

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"kotoba_backend/internal/service"
)

// Scheduler runs the daily batch jobs in-process. It is optional: the
// same work is exposed on the secret-guarded /cron HTTP endpoints for
// deployments that trigger batches externally.
type Scheduler struct {
	cron   *cron.Cron
	tiers  *service.TierChangeService
	trials *service.TrialService
}

func NewScheduler(tiers *service.TierChangeService, trials *service.TrialService) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		tiers:  tiers,
		trials: trials,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.runTierChanges); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", s.runTrialExpiry); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 9 * * *", s.runTrialWarnings); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("In-process scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runTierChanges() {
	log.Println("Processing scheduled tier changes...")
	processed, err := s.tiers.ProcessScheduledTierChanges(context.Background())
	if err != nil {
		log.Printf("Error processing scheduled tier changes: %v", err)
		return
	}
	log.Printf("Applied %d scheduled tier changes", processed)
}

func (s *Scheduler) runTrialExpiry() {
	log.Println("Expiring finished trials...")
	processed, err := s.trials.ExpireTrials(context.Background())
	if err != nil {
		log.Printf("Error expiring trials: %v", err)
		return
	}
	log.Printf("Expired %d trials", processed)
}

func (s *Scheduler) runTrialWarnings() {
	log.Println("Sending trial expiry warnings...")
	if err := s.trials.WarnExpiringTrials(context.Background()); err != nil {
		log.Printf("Error sending trial warnings: %v", err)
	}
}
