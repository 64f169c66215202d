package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/agent-faceid/internal/config"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/database/postgres"
	"github.com/kozaktomas/agent-faceid/internal/faceengine"
	"github.com/kozaktomas/agent-faceid/internal/facematch"
	"github.com/kozaktomas/agent-faceid/internal/logger"
	"github.com/kozaktomas/agent-faceid/internal/roster"
	"github.com/kozaktomas/agent-faceid/internal/storage"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	client  *faceengine.Client
	handle  *faceengine.Handle
	objects storage.ObjectStore
	repo    *postgres.AgentRepository
	service *roster.Service
}

func loadApp() *app {
	cfg := config.Load()
	return &app{cfg: cfg, log: logger.New(cfg.Log)}
}

// engine returns the lazily initialised engine handle.
func (a *app) engine() *faceengine.Handle {
	if a.handle == nil {
		e := a.cfg.Engine
		a.client = faceengine.NewClient(e.URL, e.Model, e.DetSize, e.Timeout)
		a.handle = faceengine.NewClientHandle(a.client, e.Serialize)
	}
	return a.handle
}

func (a *app) overlay() (facematch.Overlay, error) {
	if a.cfg.Engine.OverlayPath == "" {
		return facematch.DefaultOverlay(), nil
	}
	ov, err := facematch.LoadOverlay(a.cfg.Engine.OverlayPath)
	if err != nil {
		return facematch.Overlay{}, fmt.Errorf("loading landmark overlay: %w", err)
	}
	return ov, nil
}

func (a *app) extractor() (*facematch.Extractor, error) {
	ov, err := a.overlay()
	if err != nil {
		return nil, err
	}
	return facematch.NewExtractor(a.engine(), facematch.NewMasker(ov), a.cfg.Engine.EmbeddingDim, a.log), nil
}

func (a *app) pipeline() (*facematch.Pipeline, error) {
	ex, err := a.extractor()
	if err != nil {
		return nil, err
	}
	policy, err := facematch.ParsePolicy(a.cfg.Matching.Policy)
	if err != nil {
		return nil, err
	}
	matcher := facematch.NewMatcher(a.cfg.Matching.Threshold, policy, a.log)
	return facematch.NewPipeline(ex, matcher, facematch.AlwaysLive{}, a.log), nil
}

// connect opens PostgreSQL, runs migrations and registers the agent repository.
// withIndex also builds the in-memory HNSW index when enabled.
func (a *app) connect(ctx context.Context, withIndex bool) error {
	if a.cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&a.cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	a.repo = postgres.NewAgentRepository(postgres.GetGlobalPool())
	database.RegisterPostgresBackend(func() database.AgentWriter { return a.repo })

	if withIndex && a.cfg.Database.HNSWEnabled {
		if err := a.repo.EnableHNSW(ctx); err != nil {
			a.log.WithError(err).Warn("failed to build agent HNSW index, nearest-agent lookups will use PostgreSQL")
		} else {
			a.log.WithField("agents", a.repo.HNSWCount()).Info("agent HNSW index built")
			database.RegisterAgentHNSWRebuilder(a.repo)
		}
	}
	return nil
}

// roster wires the full enrollment and login service.
func (a *app) roster(ctx context.Context, withIndex bool) (*roster.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	if err := a.connect(ctx, withIndex); err != nil {
		return nil, err
	}

	store, err := database.GetAgentWriter(ctx)
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	a.objects = objects

	p, err := a.pipeline()
	if err != nil {
		return nil, err
	}

	a.service = roster.NewService(p, store, objects, a.cfg.Engine.Model, a.cfg.Matching.DuplicateThreshold, a.log)
	return a.service, nil
}

// close releases the database pool.
func (a *app) close() {
	if pool := postgres.GetGlobalPool(); pool != nil {
		pool.Close()
	}
}
