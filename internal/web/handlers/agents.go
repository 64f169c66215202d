package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/agent-faceid/internal/constants"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/facematch"
	"github.com/kozaktomas/agent-faceid/internal/roster"
)

// AgentService is the enrollment and login backend used by the handlers.
type AgentService interface {
	Enroll(ctx context.Context, id roster.Identity, photos [][]byte) (*roster.EnrollResult, error)
	Login(ctx context.Context, photos [][]byte) (*roster.LoginResult, error)
	List(ctx context.Context, query string) ([]database.Agent, error)
	Get(ctx context.Context, employeeID string) (*database.Agent, error)
	SetStatus(ctx context.Context, employeeID, status string) error
	Delete(ctx context.Context, employeeID string) error
}

// AgentsHandler handles enrollment, face login and agent management.
type AgentsHandler struct {
	service AgentService
	log     logrus.FieldLogger
}

// NewAgentsHandler creates a new agents handler.
func NewAgentsHandler(service AgentService, log logrus.FieldLogger) *AgentsHandler {
	return &AgentsHandler{service: service, log: log}
}

// AgentResponse is the public view of an agent. The signature is never exposed.
type AgentResponse struct {
	ID         string    `json:"id"`
	LastName   string    `json:"last_name"`
	FirstName  string    `json:"first_name"`
	EmployeeID string    `json:"employee_id"`
	Department string    `json:"department"`
	Phone      string    `json:"phone"`
	Photos     []string  `json:"photos"`
	FaceCrops  []string  `json:"face_crops"`
	Status     string    `json:"status"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newAgentResponse(a *database.Agent) AgentResponse {
	photos := a.Photos
	if photos == nil {
		photos = []string{}
	}
	crops := a.FaceCrops
	if crops == nil {
		crops = []string{}
	}
	return AgentResponse{
		ID:         a.ID,
		LastName:   a.LastName,
		FirstName:  a.FirstName,
		EmployeeID: a.EmployeeID,
		Department: a.Department,
		Phone:      a.Phone,
		Photos:     photos,
		FaceCrops:  crops,
		Status:     a.Status,
		Model:      a.Model,
		CreatedAt:  a.CreatedAt,
	}
}

// AnnotationResponse reports how the landmark overlay went for one photo.
type AnnotationResponse struct {
	Photo  int    `json:"photo"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DuplicateResponse describes an existing agent resembling a new enrollment.
type DuplicateResponse struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// EnrollResponse is returned by a successful enrollment.
type EnrollResponse struct {
	Success           bool                 `json:"success"`
	Message           string               `json:"message"`
	Agent             AgentResponse        `json:"agent"`
	FaceCrops         []string             `json:"face_crops"`
	Annotations       []AnnotationResponse `json:"annotations"`
	PossibleDuplicate *DuplicateResponse   `json:"possible_duplicate"`
}

// LoginResponse is returned by a successful face login.
type LoginResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Agent      AgentResponse `json:"agent"`
	Similarity float64       `json:"similarity"`
	PhotosUsed int           `json:"photos_used"`
}

// respondServiceError maps service errors to HTTP statuses.
func (h *AgentsHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalidAgent), errors.Is(err, roster.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrAgentExists):
		respondError(w, http.StatusConflict, "an agent with this employee ID is already enrolled")
	case errors.Is(err, database.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "agent not found")
	default:
		h.log.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePhotos parses the multipart body and reads its photos, writing a 400 on failure.
func parsePhotos(w http.ResponseWriter, r *http.Request) ([][]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return nil, false
	}
	photos, err := readPhotos(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return photos, true
}

// Enroll registers a new agent from a multipart form.
func (h *AgentsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	photos, ok := parsePhotos(w, r)
	if !ok {
		return
	}

	id := roster.Identity{
		LastName:   r.FormValue("last_name"),
		FirstName:  r.FormValue("first_name"),
		EmployeeID: r.FormValue("employee_id"),
		Department: r.FormValue("department"),
		Phone:      r.FormValue("phone"),
	}

	res, err := h.service.Enroll(r.Context(), id, photos)
	if err != nil {
		h.log.WithError(err).WithField("employee_id", sanitizeForLog(id.EmployeeID)).Info("enrollment rejected")
		h.respondServiceError(w, err)
		return
	}

	annotations := make([]AnnotationResponse, len(res.Faces))
	for i, f := range res.Faces {
		annotations[i] = AnnotationResponse{Photo: f.PhotoIndex + 1, Status: f.Annotation.Status.String()}
		if f.Annotation.Err != nil {
			annotations[i].Error = f.Annotation.Err.Error()
		}
	}

	resp := EnrollResponse{
		Success:     true,
		Message:     "Agent " + res.Agent.DisplayName() + " enrolled",
		Agent:       newAgentResponse(res.Agent),
		Annotations: annotations,
	}
	resp.FaceCrops = resp.Agent.FaceCrops
	if d := res.PossibleDuplicate; d != nil {
		resp.PossibleDuplicate = &DuplicateResponse{
			EmployeeID: d.Agent.EmployeeID,
			Name:       d.Agent.DisplayName(),
			Similarity: d.Similarity,
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// LoginFace identifies an agent from one or more photos.
func (h *AgentsHandler) LoginFace(w http.ResponseWriter, r *http.Request) {
	photos, ok := parsePhotos(w, r)
	if !ok {
		return
	}

	res, err := h.service.Login(r.Context(), photos)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	switch res.Decision.Outcome {
	case facematch.OutcomeAccepted:
		respondJSON(w, http.StatusOK, LoginResponse{
			Success:    true,
			Message:    "Welcome, " + res.Agent.DisplayName(),
			Agent:      newAgentResponse(res.Agent),
			Similarity: res.Decision.Match.Similarity,
			PhotosUsed: res.Decision.PhotosUsed,
		})
	case facematch.OutcomeNoFace:
		respondError(w, http.StatusBadRequest, "no face detected")
	case facematch.OutcomeLivenessFailed:
		respondError(w, http.StatusForbidden, "liveness check failed")
	default:
		respondError(w, http.StatusUnauthorized, "face not recognized")
	}
}

// List returns enrolled agents, optionally filtered by the q query parameter.
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	out := make([]AgentResponse, len(agents))
	for i := range agents {
		out[i] = newAgentResponse(&agents[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one agent.
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.service.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newAgentResponse(agent))
}

// UpdateStatusRequest is the body of a status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes an agent's status.
func (h *AgentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	if err := h.service.SetStatus(r.Context(), employeeID, req.Status); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": req.Status})
}

// Delete removes an agent and its stored files.
func (h *AgentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "employeeID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Reindex rebuilds the in-memory agent index from the database.
func (h *AgentsHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	rebuilder := database.GetAgentHNSWRebuilder()
	if rebuilder == nil || !rebuilder.IsHNSWEnabled() {
		respondError(w, http.StatusServiceUnavailable, "agent index is not enabled")
		return
	}
	if err := rebuilder.RebuildHNSW(r.Context()); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "indexed": rebuilder.HNSWCount()})
}
