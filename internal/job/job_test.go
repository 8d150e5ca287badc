package job_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/chordsinger/chordsinger/internal/job"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := job.NewRegistry()

	j := reg.Create()
	if j.ID() == uuid.Nil {
		t.Fatal("created job has nil ID")
	}

	got, err := reg.Get(j.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != j {
		t.Error("Get returned a different job instance")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_GetUnknownID(t *testing.T) {
	reg := job.NewRegistry()
	if _, err := reg.Get(uuid.New()); !errors.Is(err, job.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestJob_InitialStatus(t *testing.T) {
	j := job.NewRegistry().Create()

	s := j.Status()
	if s.Phase != job.PhaseQueued {
		t.Errorf("Phase = %q, want queued", s.Phase)
	}
	if s.Progress != 0 {
		t.Errorf("Progress = %v, want 0", s.Progress)
	}
	if s.ID != j.ID().String() {
		t.Errorf("ID = %q, want %q", s.ID, j.ID())
	}
	if s.Error != "" {
		t.Errorf("Error = %q, want empty", s.Error)
	}
}

func TestJob_ResultBeforeCompletion(t *testing.T) {
	j := job.NewRegistry().Create()
	if _, err := j.Result(); !errors.Is(err, job.ErrNotFinished) {
		t.Errorf("err = %v, want ErrNotFinished", err)
	}
}

func TestJob_CancelBeforeProcessingIsNoop(t *testing.T) {
	j := job.NewRegistry().Create()

	// No pipeline has attached a cancel func yet.
	j.Cancel()
	j.Cancel()

	if got := j.Status().Phase; got != job.PhaseQueued {
		t.Errorf("Phase = %q, want queued", got)
	}
}

func TestPhase_Terminal(t *testing.T) {
	cases := []struct {
		phase job.Phase
		want  bool
	}{
		{job.PhaseQueued, false},
		{job.PhaseSynthesizing, false},
		{job.PhaseCompleted, true},
		{job.PhaseError, true},
	}
	for _, tc := range cases {
		if got := tc.phase.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.phase, got, tc.want)
		}
	}
}
