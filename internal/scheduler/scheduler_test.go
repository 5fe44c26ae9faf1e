package scheduler

import (
	"testing"
	"time"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	// Invalid expressions are rejected
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid expression, got nil")
	}
}

func TestSchedulerAddEveryFires(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{}, 10)
	if err := s.AddEvery(100*time.Millisecond, func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Expected no error adding interval job, got %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("interval job never fired")
	}
}

func TestSchedulerAddEveryDefaultsInterval(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddEvery(0, func() {}); err != nil {
		t.Errorf("Expected non-positive interval to fall back to default, got %v", err)
	}
}
