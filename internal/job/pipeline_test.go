package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chordsinger/chordsinger/internal/assemble"
	"github.com/chordsinger/chordsinger/internal/singer"
	"github.com/chordsinger/chordsinger/pkg/audio"
	"github.com/chordsinger/chordsinger/pkg/music"
	shiftmock "github.com/chordsinger/chordsinger/pkg/provider/pitchshift/mock"
	ttsmock "github.com/chordsinger/chordsinger/pkg/provider/tts/mock"
)

const testRate = 22050

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSong(seconds float64) audio.Clip {
	return audio.Silence(seconds, testRate)
}

// testChords is the canonical four-chord progression used across the
// pipeline tests: C for two bars, then a quick G → Am → F turnaround.
func testChords() []music.ChordEvent {
	return []music.ChordEvent{
		{Symbol: "C", StartSec: 0, EndSec: 2.0},
		{Symbol: "G", StartSec: 2.0, EndSec: 3.2},
		{Symbol: "Am", StartSec: 3.2, EndSec: 3.6},
		{Symbol: "F", StartSec: 3.6, EndSec: 5.0},
	}
}

func voicedMelody(seconds, hz float64) music.MelodyContour {
	var m music.MelodyContour
	for t := 0.0; t < seconds; t += 0.1 {
		m = append(m, music.ContourPoint{TimeSec: t, FreqHz: hz, Voiced: true})
	}
	return m
}

func newProcessor(tp *ttsmock.Provider, sh *shiftmock.Shifter) *Processor {
	return &Processor{
		Singer: singer.New(tp, sh, singer.WithLogger(quietLogger())),
		Logger: quietLogger(),
	}
}

func TestProcess_SpokenModeCompletes(t *testing.T) {
	tp := &ttsmock.Provider{}
	sh := &shiftmock.Shifter{}
	p := newProcessor(tp, sh)
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: testSong(5.0), Chords: testChords()})

	s := j.Status()
	if s.Phase != PhaseCompleted {
		t.Fatalf("Phase = %q (%s), want completed", s.Phase, s.Error)
	}
	if s.Progress != 100 {
		t.Errorf("Progress = %v, want 100", s.Progress)
	}

	mix, err := j.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if mix.Seconds() < 5.0 {
		t.Errorf("mix duration = %v, want at least the song length", mix.Seconds())
	}

	// Without melody data nothing is pitch-shifted.
	if got := len(sh.Factors()); got != 0 {
		t.Errorf("shifter called %d times in spoken mode, want 0", got)
	}
	if got := len(tp.Calls()); got != len(testChords()) {
		t.Errorf("synthesised %d segments, want %d", got, len(testChords()))
	}

	select {
	case <-j.Done():
	default:
		t.Error("Done channel not closed after completion")
	}
}

func TestProcess_SungModeShiftsPitch(t *testing.T) {
	sh := &shiftmock.Shifter{}
	p := newProcessor(&ttsmock.Provider{}, sh)
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{
		Song:   testSong(5.0),
		Chords: testChords(),
		Melody: voicedMelody(5.0, 220),
	})

	if s := j.Status(); s.Phase != PhaseCompleted {
		t.Fatalf("Phase = %q (%s), want completed", s.Phase, s.Error)
	}
	if len(sh.Factors()) == 0 {
		t.Error("shifter never called despite a voiced melody")
	}
}

func TestProcess_EmptySongFails(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: audio.Clip{Rate: testRate}, Chords: testChords()})

	s := j.Status()
	if s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
	if !strings.Contains(s.Error, "empty") {
		t.Errorf("Error = %q, want empty-song message", s.Error)
	}
}

func TestProcess_EmptyChordTimelineFails(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: testSong(2.0)})

	if s := j.Status(); s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
}

func TestProcess_UnorderedMelodyFails(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	melody := music.MelodyContour{
		{TimeSec: 1.0, FreqHz: 220, Voiced: true},
		{TimeSec: 0.5, FreqHz: 220, Voiced: true},
	}
	p.Process(context.Background(), j, Request{Song: testSong(2.0), Chords: testChords()[:1], Melody: melody})

	s := j.Status()
	if s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
	if !strings.Contains(s.Error, "time-ascending") {
		t.Errorf("Error = %q, want melody ordering message", s.Error)
	}
}

func TestProcess_SynthesisFailureLeavesNoAudio(t *testing.T) {
	tp := &ttsmock.Provider{Err: errors.New("engine down")}
	p := newProcessor(tp, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: testSong(5.0), Chords: testChords()})

	s := j.Status()
	if s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
	if !strings.Contains(s.Error, "segment") {
		t.Errorf("Error = %q, want a segment-scoped message", s.Error)
	}

	mix, err := j.Result()
	if err == nil {
		t.Fatal("Result succeeded after a failed run")
	}
	if mix.Len() != 0 {
		t.Errorf("partial audio retained: %d frames", mix.Len())
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Process(ctx, j, Request{Song: testSong(5.0), Chords: testChords()})

	s := j.Status()
	if s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
	if _, err := j.Result(); !errors.Is(err, ErrCancelled) {
		t.Errorf("Result err = %v, want ErrCancelled", err)
	}
}

// cancellingTTS cancels its own job on the first synthesis call and records
// whether any call saw a cancelled context.
type cancellingTTS struct {
	job *Job

	mu       sync.Mutex
	fired    bool
	aborted  int
	finished int
}

func (p *cancellingTTS) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	p.mu.Lock()
	fire := !p.fired
	p.fired = true
	p.mu.Unlock()
	if fire {
		p.job.Cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		p.aborted++
		return audio.Clip{}, ctx.Err()
	}
	p.finished++
	return audio.Silence(0.3, testRate), nil
}

func TestProcess_CancelLetsInFlightSegmentsFinish(t *testing.T) {
	j := NewRegistry().Create()
	tp := &cancellingTTS{job: j}
	p := &Processor{
		Singer: singer.New(tp, &shiftmock.Shifter{}, singer.WithLogger(quietLogger())),
		Logger: quietLogger(),
	}

	p.Process(context.Background(), j, Request{Song: testSong(5.0), Chords: testChords()})

	if _, err := j.Result(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Result err = %v, want ErrCancelled", err)
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.aborted != 0 {
		t.Errorf("%d synthesis calls aborted mid-utterance after cancel", tp.aborted)
	}
	if tp.finished == 0 {
		t.Error("no dispatched synthesis call ran to completion")
	}
}

func TestProcessor_MixGains(t *testing.T) {
	p := &Processor{}
	inst, voc := p.mixGains()
	if inst != assemble.DefaultInstrumentalGainDB || voc != assemble.DefaultVocalGainDB {
		t.Errorf("unset gains = (%v, %v), want defaults (%v, %v)",
			inst, voc, assemble.DefaultInstrumentalGainDB, assemble.DefaultVocalGainDB)
	}

	// An explicit 0 dB (no ducking, no boost) must win over the defaults.
	zero := 0.0
	p.InstrumentalGainDB = &zero
	p.VocalGainDB = &zero
	inst, voc = p.mixGains()
	if inst != 0 || voc != 0 {
		t.Errorf("explicit 0 dB resolved to (%v, %v)", inst, voc)
	}
}

func TestProcess_Timeout(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	p.Timeout = time.Nanosecond
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: testSong(5.0), Chords: testChords()})

	s := j.Status()
	if s.Phase != PhaseError {
		t.Fatalf("Phase = %q, want error", s.Phase)
	}
	if !strings.Contains(s.Error, "timed out") {
		t.Errorf("Error = %q, want timeout message", s.Error)
	}
}

func TestPlanSegments_DropsFillersWhenDense(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})

	// Half-second gaps leave no room for filler phrases but enough for the
	// chord names themselves.
	chords := []music.ChordEvent{
		{Symbol: "C", StartSec: 0, EndSec: 0.5},
		{Symbol: "G", StartSec: 0.5, EndSec: 1.0},
		{Symbol: "F", StartSec: 1.0, EndSec: 1.5},
	}
	segments, err := p.planSegments(chords, quietLogger())
	if err != nil {
		t.Fatalf("planSegments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	for _, seg := range segments {
		if seg.FillerTokens != 0 {
			t.Errorf("segment %d kept %d filler tokens on a dense timeline", seg.EventIndex, seg.FillerTokens)
		}
	}
}

func TestPlanSegments_AcceptsOverlapAsLastResort(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})

	// 100 ms gaps: even bare chord names overlap, so the plan must come back
	// with warnings rather than fail the job.
	chords := []music.ChordEvent{
		{Symbol: "C", StartSec: 0, EndSec: 0.1},
		{Symbol: "G", StartSec: 0.1, EndSec: 0.2},
		{Symbol: "F", StartSec: 0.2, EndSec: 0.3},
	}
	segments, err := p.planSegments(chords, quietLogger())
	if err != nil {
		t.Fatalf("planSegments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	for i, seg := range segments {
		if seg.ScheduledStartSec != chords[i].StartSec {
			t.Errorf("segment %d start = %v, want the chord-change instant %v",
				i, seg.ScheduledStartSec, chords[i].StartSec)
		}
	}
}

func TestProcess_TerminalJobIgnoresLaterTransitions(t *testing.T) {
	p := newProcessor(&ttsmock.Provider{}, &shiftmock.Shifter{})
	j := NewRegistry().Create()

	p.Process(context.Background(), j, Request{Song: testSong(5.0), Chords: testChords()})
	if s := j.Status(); s.Phase != PhaseCompleted {
		t.Fatalf("Phase = %q, want completed", s.Phase)
	}

	j.setPhase(PhaseSynthesizing, 50, "late write")
	j.fail(errors.New("late failure"))

	s := j.Status()
	if s.Phase != PhaseCompleted || s.Progress != 100 {
		t.Errorf("terminal state mutated: phase %q progress %v", s.Phase, s.Progress)
	}
}
