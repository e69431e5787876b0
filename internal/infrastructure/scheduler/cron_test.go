package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)
	if err := s.Add("every now and then", func() {}); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.Add("* * * * * *", func() {}); err == nil {
		t.Fatal("seconds field must not be accepted")
	}
	if err := s.Add("*/30 * * * *", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
	if err := s.Add("*/30 * * * *", func() {}); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestCronSchedulerRunsJobsAndRecovers(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)
	ran := make(chan struct{}, 4)
	if err := s.Add("@every 10ms", func() { panic("boom") }); err != nil {
		t.Fatalf("Add panicking job: %v", err)
	}
	if err := s.Add("@every 10ms", func() { ran <- struct{}{} }); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
