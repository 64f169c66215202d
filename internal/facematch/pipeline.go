package facematch

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
)

// Outcome is the kind of login decision.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeNoFace
	OutcomeNoMatch
	OutcomeLivenessFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeLivenessFailed:
		return "liveness_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision is the result of a login attempt. Match is set only for OutcomeAccepted.
// RejectedPhoto is the index of the photo that failed liveness, or -1.
type Decision struct {
	Outcome       Outcome
	Match         Match
	PhotosUsed    int
	RejectedPhoto int
}

// EnrolledFace is a photo that contributed to an enrollment.
type EnrolledFace struct {
	PhotoIndex int
	Crop       image.Image
	Annotation Annotation
}

// Enrollment is the result of an enrollment run. Signature is nil when no photo
// produced a face.
type Enrollment struct {
	Signature Signature
	Faces     []EnrolledFace
}

// Empty reports whether no photo produced a usable face.
func (e *Enrollment) Empty() bool {
	return len(e.Signature) == 0
}

// RosterSource supplies the current roster for a login.
type RosterSource interface {
	Roster(ctx context.Context) ([]RosterEntry, error)
}

// RosterFunc adapts a function to RosterSource.
type RosterFunc func(ctx context.Context) ([]RosterEntry, error)

// Roster implements RosterSource.
func (f RosterFunc) Roster(ctx context.Context) ([]RosterEntry, error) {
	return f(ctx)
}

// Pipeline runs enrollment and login over a set of photos, one photo at a time in
// the order given.
type Pipeline struct {
	extractor *Extractor
	matcher   *Matcher
	liveness  LivenessChecker
	log       logrus.FieldLogger
}

// NewPipeline wires the pipeline. A nil liveness checker accepts every photo.
func NewPipeline(extractor *Extractor, matcher *Matcher, liveness LivenessChecker, log logrus.FieldLogger) *Pipeline {
	if liveness == nil {
		liveness = AlwaysLive{}
	}
	return &Pipeline{extractor: extractor, matcher: matcher, liveness: liveness, log: log}
}

// extractAll extracts every photo. With a liveness gate, a rejected photo stops the
// run and its index is returned.
func (p *Pipeline) extractAll(ctx context.Context, photos [][]byte, gate bool) ([]Signature, []EnrolledFace, int, error) {
	var sigs []Signature
	var faces []EnrolledFace

	for i, photo := range photos {
		log := p.log.WithField("photo", i+1)

		if gate {
			live, err := p.liveness.CheckLiveness(ctx, photo)
			if err != nil {
				return nil, nil, -1, fmt.Errorf("liveness check on photo %d: %w", i+1, err)
			}
			if !live {
				log.Warn("liveness check rejected photo")
				return nil, nil, i, nil
			}
		}

		ex, err := p.extractor.Extract(ctx, photo)
		if err != nil {
			return nil, nil, -1, fmt.Errorf("photo %d: %w", i+1, err)
		}
		if !ex.Detected {
			log.Info("no face detected")
			continue
		}

		if ex.FaceCount > 1 {
			log.WithField("faces", ex.FaceCount).Info("several faces detected, using the first")
		}
		if ex.Annotation.Err != nil {
			log.WithError(ex.Annotation.Err).WithField("status", ex.Annotation.Status.String()).
				Warn("landmark overlay incomplete")
		}

		sigs = append(sigs, ex.Signature)
		faces = append(faces, EnrolledFace{PhotoIndex: i, Crop: ex.Crop, Annotation: ex.Annotation})
	}
	return sigs, faces, -1, nil
}

// Enroll extracts every photo and averages the signatures. Photos without a face are
// skipped; when none has one the returned enrollment is Empty.
func (p *Pipeline) Enroll(ctx context.Context, photos [][]byte) (*Enrollment, error) {
	sigs, faces, _, err := p.extractAll(ctx, photos, false)
	if err != nil {
		return nil, err
	}

	agg, ok := Aggregate(sigs)
	if !ok {
		return &Enrollment{}, nil
	}
	return &Enrollment{Signature: agg, Faces: faces}, nil
}

// Login gates and extracts every photo, averages the signatures and matches the result
// against the roster. The roster is read only when a query signature exists.
func (p *Pipeline) Login(ctx context.Context, photos [][]byte, roster RosterSource) (*Decision, error) {
	sigs, _, rejected, err := p.extractAll(ctx, photos, true)
	if err != nil {
		return nil, err
	}
	if rejected >= 0 {
		return &Decision{Outcome: OutcomeLivenessFailed, RejectedPhoto: rejected}, nil
	}

	query, ok := Aggregate(sigs)
	if !ok {
		return &Decision{Outcome: OutcomeNoFace, RejectedPhoto: -1}, nil
	}

	entries, err := roster.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	p.log.WithFields(logrus.Fields{"roster": len(entries), "photos_used": len(sigs)}).Debug("matching query signature")

	match, found := p.matcher.Match(query, entries)
	if !found {
		return &Decision{Outcome: OutcomeNoMatch, PhotosUsed: len(sigs), RejectedPhoto: -1}, nil
	}
	return &Decision{Outcome: OutcomeAccepted, Match: match, PhotosUsed: len(sigs), RejectedPhoto: -1}, nil
}
