package facematch

import "context"

// LivenessChecker decides whether a photo shows a live face. It runs once per login
// photo, before extraction.
type LivenessChecker interface {
	CheckLiveness(ctx context.Context, imageData []byte) (bool, error)
}

// LivenessFunc adapts a function to LivenessChecker.
type LivenessFunc func(ctx context.Context, imageData []byte) (bool, error)

// CheckLiveness implements LivenessChecker.
func (f LivenessFunc) CheckLiveness(ctx context.Context, imageData []byte) (bool, error) {
	return f(ctx, imageData)
}

// AlwaysLive accepts every photo. It stands in until a real liveness model is wired.
type AlwaysLive struct{}

// CheckLiveness implements LivenessChecker.
func (AlwaysLive) CheckLiveness(context.Context, []byte) (bool, error) {
	return true, nil
}
