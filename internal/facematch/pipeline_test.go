package facematch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/agent-faceid/internal/faceengine"
	"github.com/kozaktomas/agent-faceid/internal/logger"
)

func newTestPipeline(a faceengine.Analyzer, liveness LivenessChecker, policy Policy) *Pipeline {
	log := logger.Discard()
	return NewPipeline(
		NewExtractor(a, NewMasker(DefaultOverlay()), 0, log),
		NewMatcher(0.60, policy, log),
		liveness,
		log,
	)
}

func staticRoster(entries ...RosterEntry) RosterSource {
	return RosterFunc(func(context.Context) ([]RosterEntry, error) { return entries, nil })
}

func TestPipeline_EnrollAveragesDetectedPhotos(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{
		{faceWith(1, 0, 2)},
		{},
		{faceWith(3, 2, 0)},
	}}
	p := newTestPipeline(analyzer, nil, PolicyFirst)

	photos := [][]byte{pngPhoto(t, 200, 200), pngPhoto(t, 200, 200), pngPhoto(t, 200, 200)}
	enr, err := p.Enroll(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enr.Empty() {
		t.Fatal("expected a signature")
	}

	want := Signature{2, 1, 1}
	for i := range want {
		if math.Abs(float64(enr.Signature[i]-want[i])) > 1e-6 {
			t.Errorf("component %d = %v, want %v", i, enr.Signature[i], want[i])
		}
	}

	if len(enr.Faces) != 2 {
		t.Fatalf("expected 2 enrolled faces, got %d", len(enr.Faces))
	}
	if enr.Faces[0].PhotoIndex != 0 || enr.Faces[1].PhotoIndex != 2 {
		t.Errorf("expected photo indexes 0 and 2, got %d and %d", enr.Faces[0].PhotoIndex, enr.Faces[1].PhotoIndex)
	}
}

func TestPipeline_EnrollWithoutFacesIsEmpty(t *testing.T) {
	p := newTestPipeline(&fakeAnalyzer{}, nil, PolicyFirst)

	enr, err := p.Enroll(context.Background(), [][]byte{pngPhoto(t, 30, 30), []byte("junk")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enr.Empty() {
		t.Errorf("expected empty enrollment, got %v", enr.Signature)
	}
	if enr.Signature != nil {
		t.Error("empty enrollment must not carry a zero vector")
	}
}

func TestPipeline_LoginAccepted(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{
		{faceWith(1, 0)},
		{faceWith(1, 0)},
	}}
	p := newTestPipeline(analyzer, AlwaysLive{}, PolicyFirst)

	roster := staticRoster(
		entry("A", withSimilarity(0.58)),
		entry("B", withSimilarity(0.62)),
		entry("C", withSimilarity(0.90)),
	)

	d, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 200, 200), pngPhoto(t, 200, 200)}, roster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted, got %v", d.Outcome)
	}
	if d.Match.Entry.ID != "B" {
		t.Errorf("first-match policy should return B, got %s", d.Match.Entry.ID)
	}
	if d.PhotosUsed != 2 {
		t.Errorf("expected 2 photos used, got %d", d.PhotosUsed)
	}
	if d.RejectedPhoto != -1 {
		t.Errorf("expected no rejected photo, got %d", d.RejectedPhoto)
	}
}

func TestPipeline_LoginBestPolicy(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{{faceWith(1, 0)}}}
	p := newTestPipeline(analyzer, nil, PolicyBest)

	roster := staticRoster(entry("B", withSimilarity(0.62)), entry("C", withSimilarity(0.90)))
	d, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 200, 200)}, roster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeAccepted || d.Match.Entry.ID != "C" {
		t.Errorf("best policy should return C, got %v %s", d.Outcome, d.Match.Entry.ID)
	}
}

func TestPipeline_LoginLivenessFailedStopsBeforeExtraction(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{
		{faceWith(1, 0)},
		{faceWith(1, 0)},
		{faceWith(1, 0)},
	}}
	checks := 0
	gate := LivenessFunc(func(ctx context.Context, imageData []byte) (bool, error) {
		checks++
		return checks != 2, nil
	})
	rosterRead := false
	roster := RosterFunc(func(context.Context) ([]RosterEntry, error) {
		rosterRead = true
		return []RosterEntry{entry("A", withSimilarity(0.99))}, nil
	})

	p := newTestPipeline(analyzer, gate, PolicyFirst)
	photos := [][]byte{pngPhoto(t, 200, 200), pngPhoto(t, 200, 200), pngPhoto(t, 200, 200)}

	d, err := p.Login(context.Background(), photos, roster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeLivenessFailed {
		t.Fatalf("expected liveness failure, got %v", d.Outcome)
	}
	if d.RejectedPhoto != 1 {
		t.Errorf("expected photo index 1 rejected, got %d", d.RejectedPhoto)
	}
	if analyzer.calls != 1 {
		t.Errorf("expected extraction only for the first photo, got %d engine calls", analyzer.calls)
	}
	if rosterRead {
		t.Error("roster must not be read after a liveness rejection")
	}
}

func TestPipeline_LoginNoFace(t *testing.T) {
	rosterRead := false
	roster := RosterFunc(func(context.Context) ([]RosterEntry, error) {
		rosterRead = true
		return nil, nil
	})

	p := newTestPipeline(&fakeAnalyzer{}, nil, PolicyFirst)
	d, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 40, 40)}, roster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeNoFace {
		t.Errorf("expected no face, got %v", d.Outcome)
	}
	if rosterRead {
		t.Error("roster must not be read without a query signature")
	}
}

func TestPipeline_LoginNoMatch(t *testing.T) {
	t.Run("empty roster", func(t *testing.T) {
		analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{{faceWith(1, 0)}}}
		p := newTestPipeline(analyzer, nil, PolicyFirst)

		d, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 200, 200)}, staticRoster())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Outcome != OutcomeNoMatch {
			t.Errorf("expected no match, got %v", d.Outcome)
		}
	})

	t.Run("only corrupt and distant entries", func(t *testing.T) {
		analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{{faceWith(1, 0)}}}
		p := newTestPipeline(analyzer, nil, PolicyFirst)

		roster := staticRoster(RosterEntry{ID: "bad", Signature: "oops"}, entry("far", withSimilarity(0.1)))
		d, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 200, 200)}, roster)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Outcome != OutcomeNoMatch {
			t.Errorf("expected no match, got %v", d.Outcome)
		}
	})
}

func TestPipeline_StructuralErrorsPropagate(t *testing.T) {
	t.Run("engine", func(t *testing.T) {
		p := newTestPipeline(&fakeAnalyzer{err: errors.New("engine down")}, nil, PolicyFirst)
		if _, err := p.Enroll(context.Background(), [][]byte{pngPhoto(t, 50, 50)}); err == nil {
			t.Error("expected enroll error")
		}
	})

	t.Run("liveness", func(t *testing.T) {
		gate := LivenessFunc(func(context.Context, []byte) (bool, error) { return false, errors.New("model missing") })
		p := newTestPipeline(&fakeAnalyzer{}, gate, PolicyFirst)
		if _, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 50, 50)}, staticRoster()); err == nil {
			t.Error("expected login error")
		}
	})

	t.Run("roster", func(t *testing.T) {
		analyzer := &fakeAnalyzer{responses: [][]faceengine.DetectedFace{{faceWith(1, 0)}}}
		p := newTestPipeline(analyzer, nil, PolicyFirst)
		roster := RosterFunc(func(context.Context) ([]RosterEntry, error) { return nil, errors.New("db gone") })
		if _, err := p.Login(context.Background(), [][]byte{pngPhoto(t, 200, 200)}, roster); err == nil {
			t.Error("expected roster error")
		}
	})
}

func TestOutcome_String(t *testing.T) {
	names := map[Outcome]string{
		OutcomeAccepted:       "accepted",
		OutcomeNoFace:         "no_face",
		OutcomeNoMatch:        "no_match",
		OutcomeLivenessFailed: "liveness_failed",
	}
	for o, want := range names {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(o), o.String(), want)
		}
	}
}
