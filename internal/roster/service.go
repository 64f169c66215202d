// Package roster runs agent enrollment and face login on top of the face
// pipeline, the agent store and the object store.
package roster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/agent-faceid/internal/constants"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/faceengine"
	"github.com/kozaktomas/agent-faceid/internal/facematch"
	"github.com/kozaktomas/agent-faceid/internal/storage"
)

var (
	// ErrNoFaceDetected is returned when none of the photos contains a usable face.
	ErrNoFaceDetected = errors.New("no face detected in any photo")
	// ErrInvalidAgent is returned for missing identity fields, a bad photo count
	// or an unknown status.
	ErrInvalidAgent = errors.New("invalid agent")
)

// Identity holds the descriptive fields of an agent.
type Identity struct {
	LastName   string `yaml:"last_name"`
	FirstName  string `yaml:"first_name"`
	EmployeeID string `yaml:"employee_id"`
	Department string `yaml:"department"`
	Phone      string `yaml:"phone"`
}

func (id *Identity) trim() {
	id.LastName = strings.TrimSpace(id.LastName)
	id.FirstName = strings.TrimSpace(id.FirstName)
	id.EmployeeID = strings.TrimSpace(id.EmployeeID)
	id.Department = strings.TrimSpace(id.Department)
	id.Phone = strings.TrimSpace(id.Phone)
}

// Validate checks that every required field is present.
func (id Identity) Validate() error {
	var missing []string
	if strings.TrimSpace(id.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if strings.TrimSpace(id.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(id.EmployeeID) == "" {
		missing = append(missing, "employee_id")
	}
	if strings.TrimSpace(id.Department) == "" {
		missing = append(missing, "department")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAgent, strings.Join(missing, ", "))
	}
	return nil
}

// Duplicate is an already enrolled agent whose signature is close to a new enrollment.
type Duplicate struct {
	Agent      database.Agent
	Similarity float64
}

// EnrollResult is the outcome of a successful enrollment.
type EnrollResult struct {
	Agent             *database.Agent
	Faces             []facematch.EnrolledFace
	PossibleDuplicate *Duplicate
}

// LoginResult is the outcome of a login attempt. Agent is set only when the
// decision is accepted.
type LoginResult struct {
	Decision *facematch.Decision
	Agent    *database.Agent
}

// Service coordinates enrollment, login and agent management.
type Service struct {
	pipeline           *facematch.Pipeline
	store              database.AgentWriter
	objects            storage.ObjectStore
	model              string
	duplicateThreshold float64
	log                logrus.FieldLogger
}

// NewService wires the service. model is recorded on every enrolled agent.
func NewService(
	pipeline *facematch.Pipeline,
	store database.AgentWriter,
	objects storage.ObjectStore,
	model string,
	duplicateThreshold float64,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		pipeline:           pipeline,
		store:              store,
		objects:            objects,
		model:              model,
		duplicateThreshold: duplicateThreshold,
		log:                log,
	}
}

func checkPhotoCount(photos [][]byte) error {
	if len(photos) == 0 {
		return fmt.Errorf("%w: at least one photo is required", ErrInvalidAgent)
	}
	if len(photos) > constants.MaxPhotosPerRequest {
		return fmt.Errorf("%w: at most %d photos are accepted", ErrInvalidAgent, constants.MaxPhotosPerRequest)
	}
	return nil
}

// Objects are keyed by agent ID, which is unique per enrollment. Employee IDs
// are free-form and may not be safe or distinct as path segments.
func agentPrefix(agentID string) string {
	return "agents/" + agentID
}

func faceKey(agentID string, n int) string {
	return fmt.Sprintf("%s/face_%d.jpg", agentPrefix(agentID), n)
}

func photoKey(agentID string, n int) string {
	return fmt.Sprintf("%s/photo_%d.jpg", agentPrefix(agentID), n)
}

// replaceObject removes any existing object under key and uploads data.
func (s *Service) replaceObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.objects.Delete(ctx, key); err != nil {
		return "", err
	}
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return s.objects.PublicURL(key), nil
}

func encodeCrop(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.CropJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding crop: %w", err)
	}
	return buf.Bytes(), nil
}

// Enroll registers a new agent from one or more photos.
func (s *Service) Enroll(ctx context.Context, id Identity, photos [][]byte) (*EnrollResult, error) {
	id.trim()
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := checkPhotoCount(photos); err != nil {
		return nil, err
	}

	log := s.log.WithField("employee_id", id.EmployeeID)

	existing, err := s.store.GetAgent(ctx, id.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("looking up agent: %w", err)
	}
	if existing != nil {
		return nil, database.ErrAgentExists
	}

	enrollment, err := s.pipeline.Enroll(ctx, photos)
	if err != nil {
		return nil, err
	}
	if enrollment.Empty() {
		log.Warn("enrollment rejected: no face in any photo")
		return nil, ErrNoFaceDetected
	}

	agentID := uuid.NewString()
	log = log.WithField("agent_id", agentID)

	var uploaded []string
	cleanup := func() {
		for _, key := range uploaded {
			if err := s.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to remove uploaded object")
			}
		}
	}

	crops := make([]string, 0, len(enrollment.Faces))
	for _, face := range enrollment.Faces {
		data, err := encodeCrop(face.Crop)
		if err != nil {
			cleanup()
			return nil, err
		}
		key := faceKey(agentID, face.PhotoIndex+1)
		u, err := s.replaceObject(ctx, key, data, "image/jpeg")
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("storing face crop: %w", err)
		}
		uploaded = append(uploaded, key)
		crops = append(crops, u)
	}

	photoURLs := make([]string, 0, len(photos))
	for i, photo := range photos {
		key := photoKey(agentID, i+1)
		u, err := s.replaceObject(ctx, key, photo, faceengine.DetectMIMEType(photo))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("storing photo: %w", err)
		}
		uploaded = append(uploaded, key)
		photoURLs = append(photoURLs, u)
	}

	dup := s.findDuplicate(ctx, enrollment.Signature, log)

	agent := &database.Agent{
		ID:         agentID,
		LastName:   id.LastName,
		FirstName:  id.FirstName,
		EmployeeID: id.EmployeeID,
		Department: id.Department,
		Phone:      id.Phone,
		Photos:     photoURLs,
		FaceCrops:  crops,
		Status:     database.StatusPending,
		Embedding:  enrollment.Signature,
		Model:      s.model,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		cleanup()
		if errors.Is(err, database.ErrAgentExists) {
			return nil, err
		}
		return nil, fmt.Errorf("saving agent: %w", err)
	}

	log.WithFields(logrus.Fields{
		"faces":  len(enrollment.Faces),
		"photos": len(photos),
	}).Info("agent enrolled")

	return &EnrollResult{Agent: agent, Faces: enrollment.Faces, PossibleDuplicate: dup}, nil
}

// findDuplicate reports the nearest enrolled agent when it clears the duplicate
// threshold. Lookup failures are logged and ignored.
func (s *Service) findDuplicate(ctx context.Context, sig facematch.Signature, log logrus.FieldLogger) *Duplicate {
	agents, distances, err := s.store.FindNearest(ctx, sig, 1)
	if err != nil {
		log.WithError(err).Warn("duplicate check failed")
		return nil
	}
	if len(agents) == 0 {
		return nil
	}

	similarity := 1 - distances[0]
	if similarity < s.duplicateThreshold {
		return nil
	}
	log.WithFields(logrus.Fields{
		"duplicate_of": agents[0].EmployeeID,
		"similarity":   similarity,
	}).Warn("enrolled face resembles an existing agent")
	return &Duplicate{Agent: agents[0], Similarity: similarity}
}

// Login matches the photos against every enrolled agent, in enrollment order.
func (s *Service) Login(ctx context.Context, photos [][]byte) (*LoginResult, error) {
	if err := checkPhotoCount(photos); err != nil {
		return nil, err
	}

	var rows []database.RosterRow
	source := facematch.RosterFunc(func(ctx context.Context) ([]facematch.RosterEntry, error) {
		var err error
		rows, err = s.store.Roster(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]facematch.RosterEntry, len(rows))
		for i := range rows {
			entries[i] = facematch.RosterEntry{
				ID:        rows[i].Agent.ID,
				Label:     rows[i].Agent.DisplayName(),
				Signature: rows[i].Signature,
			}
		}
		return entries, nil
	})

	decision, err := s.pipeline.Login(ctx, photos, source)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Decision: decision}
	fields := logrus.Fields{"outcome": decision.Outcome.String(), "photos_used": decision.PhotosUsed}
	if decision.Outcome == facematch.OutcomeAccepted {
		agent := rows[decision.Match.Index].Agent
		result.Agent = &agent
		fields["employee_id"] = agent.EmployeeID
		fields["similarity"] = decision.Match.Similarity
	}
	s.log.WithFields(fields).Info("login attempt")

	return result, nil
}

// List returns agents in enrollment order. A non-empty query keeps agents whose
// name or employee ID contains it, ignoring case and diacritics.
func (s *Service) List(ctx context.Context, query string) ([]database.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	q := facematch.NormalizePersonName(query)
	if q == "" {
		return agents, nil
	}

	var out []database.Agent
	for _, a := range agents {
		name := facematch.NormalizePersonName(a.FirstName + " " + a.LastName)
		reversed := facematch.NormalizePersonName(a.LastName + " " + a.FirstName)
		if strings.Contains(name, q) || strings.Contains(reversed, q) ||
			strings.Contains(strings.ToLower(a.EmployeeID), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get returns one agent by employee ID.
func (s *Service) Get(ctx context.Context, employeeID string) (*database.Agent, error) {
	agent, err := s.store.GetAgent(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("looking up agent: %w", err)
	}
	if agent == nil {
		return nil, database.ErrAgentNotFound
	}
	return agent, nil
}

// SetStatus changes an agent's status.
func (s *Service) SetStatus(ctx context.Context, employeeID, status string) error {
	if !database.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAgent, status)
	}
	if err := s.store.UpdateStatus(ctx, employeeID, status); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"employee_id": employeeID, "status": status}).Info("agent status changed")
	return nil
}

// Delete removes an agent record and its stored photos and crops.
func (s *Service) Delete(ctx context.Context, employeeID string) error {
	agent, err := s.Get(ctx, employeeID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAgent(ctx, employeeID); err != nil {
		return err
	}

	log := s.log.WithField("employee_id", employeeID)
	// Crop indices follow photo indices, so the photo count bounds both.
	for n := 1; n <= len(agent.Photos); n++ {
		for _, key := range []string{photoKey(agent.ID, n), faceKey(agent.ID, n)} {
			if err := s.objects.Delete(ctx, key); err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to remove stored object")
			}
		}
	}
	log.Info("agent deleted")
	return nil
}
