package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/savant-model-analyzer/server/internal/analyzer/explain"
	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/plots"
	"github.com/savant-model-analyzer/server/internal/cache"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
	"github.com/savant-model-analyzer/server/internal/storage"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

// Datatype tags of the artifacts a session stores.
const (
	DatatypeModel            = "model"
	DatatypeFeatures         = "features"
	DatatypeSHAP             = "shap"
	DatatypeXTest            = "X_test"
	DatatypeYTest            = "y_test"
	DatatypeXTestTransformed = "X_test_transformed"
	DatatypeManifest         = "manifest"
)

// Manifest is written last and makes a session visible. Artifacts live
// under the generation key it names, so a crashed or concurrent creation
// never exposes a partial set.
type Manifest struct {
	SessionID  string    `json:"session_id"`
	Generation string    `json:"generation"`
	Source     string    `json:"source"`
	Samples    int       `json:"samples"`
	Features   []string  `json:"features"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *Manifest) artifactKey() string {
	return m.SessionID + "@" + m.Generation
}

// Session creates and serves model-analysis sessions on top of a cache
// manager. Safe for concurrent use.
type Session struct {
	cache        cache.Manager
	explainer    explain.Explainer
	claimTTL     time.Duration
	pollInterval time.Duration

	group singleflight.Group
}

type Option func(*Session)

func WithExplainer(e explain.Explainer) Option {
	return func(s *Session) { s.explainer = e }
}

// WithClaimTTL bounds how long a cross-process creation claim is held.
func WithClaimTTL(ttl time.Duration) Option {
	return func(s *Session) { s.claimTTL = ttl }
}

// WithPollInterval sets how often a waiting process checks for the manifest.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

func New(c cache.Manager, opts ...Option) *Session {
	s := &Session{
		cache:        c,
		explainer:    explain.NewTreeExplainer(),
		claimTTL:     10 * time.Minute,
		pollInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	instanceMu sync.Mutex
	instance   *Session
)

// Init builds the process-wide session on first call. Later calls return
// the first instance and ignore their arguments.
func Init(c cache.Manager, opts ...Option) (*Session, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance, nil
	}
	if c == nil {
		return nil, errx.Uninitialized("first session initialisation needs a cache manager")
	}
	instance = New(c, opts...)
	return instance, nil
}

func Instance() (*Session, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		return nil, errx.Uninitialized("model analyzer session is not initialised")
	}
	return instance, nil
}

// Create loads the bundle behind reader, computes SHAP values and stores
// every artifact under sessionID, generating an id when it is empty. A
// session that already exists is returned as is without reading anything.
func (s *Session) Create(ctx context.Context, reader storage.ObjectReader, sessionID string) (string, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := logx.With().Str("session_id", sessionID).Logger()

	ok, err := s.published(ctx, sessionID)
	if err != nil {
		createTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	if ok {
		createTotal.WithLabelValues("reused").Inc()
		log.Debug().Msg("session already exists")
		return sessionID, nil
	}

	ch := s.group.DoChan(sessionID, func() (result any, err error) {
		// a panic here would be re-raised by singleflight on its own goroutine
		defer func() {
			if r := recover(); r != nil {
				err = errx.Consistency("session %s creation panicked: %v", sessionID, r)
			}
		}()
		return s.create(context.WithoutCancel(ctx), reader, sessionID)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		createDuration.Observe(time.Since(start).Seconds())
		if res.Err != nil {
			createTotal.WithLabelValues("failed").Inc()
			log.Error().Err(res.Err).Str("source", reader.String()).Msg("session creation failed")
			return "", res.Err
		}
		result := res.Val.(string)
		if res.Shared {
			result = "waited"
		}
		createTotal.WithLabelValues(result).Inc()
		return sessionID, nil
	}
}

// create runs at most once per id at a time in this process. It returns
// the outcome label for metrics.
func (s *Session) create(ctx context.Context, reader storage.ObjectReader, id string) (string, error) {
	claimer, shared := s.cache.(cache.Claimer)
	for {
		ok, err := s.published(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			return "reused", nil
		}
		if !shared {
			break
		}

		release, acquired, err := claimer.Claim(ctx, id, s.claimTTL)
		if err != nil {
			return "", err
		}
		if acquired {
			defer func() {
				if err := release(ctx); err != nil {
					logx.Warn().Err(err).Str("session_id", id).Msg("failed to release session claim")
				}
			}()
			// the previous holder may have published just before we claimed
			if ok, err := s.published(ctx, id); err != nil {
				return "", err
			} else if ok {
				return "reused", nil
			}
			break
		}

		logx.Debug().Str("session_id", id).Msg("session is being created elsewhere, waiting")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	if err := s.build(ctx, reader, id); err != nil {
		return "", err
	}
	return "created", nil
}

func (s *Session) build(ctx context.Context, reader storage.ObjectReader, id string) error {
	bundle, err := readBundle(ctx, reader)
	if err != nil {
		return err
	}

	gen := plots.NewGenerator(bundle.Model, bundle.XTestTransformed, plots.WithExplainer(s.explainer))
	values, err := gen.CalculateSHAPValues(ctx)
	if err != nil {
		return err
	}
	shapComputations.Inc()

	m := &Manifest{
		SessionID:  id,
		Generation: uuid.NewString(),
		Source:     reader.String(),
		Samples:    len(bundle.XTestTransformed.Rows),
		Features:   bundle.XTestTransformed.Columns,
		CreatedAt:  time.Now().UTC(),
	}
	key := m.artifactKey()

	artifacts := []struct {
		datatype string
		value    any
	}{
		{DatatypeModel, bundle.Model},
		{DatatypeFeatures, bundle.XTestTransformed.Columns},
		{DatatypeSHAP, values},
		{DatatypeXTest, bundle.XTest},
		{DatatypeYTest, bundle.YTest},
		{DatatypeXTestTransformed, bundle.XTestTransformed},
	}
	for i, a := range artifacts {
		if err := s.cache.Save(ctx, key, a.datatype, a.value); err != nil {
			for _, done := range artifacts[:i] {
				if derr := s.cache.Delete(ctx, key, done.datatype); derr != nil {
					logx.Warn().Err(derr).Str("session_id", id).Str("datatype", done.datatype).Msg("failed to remove staged artifact")
				}
			}
			return fmt.Errorf("save %s: %w", a.datatype, err)
		}
	}
	if err := s.cache.Save(ctx, id, DatatypeManifest, m); err != nil {
		return fmt.Errorf("save %s: %w", DatatypeManifest, err)
	}

	logx.Info().
		Str("session_id", id).
		Str("generation", m.Generation).
		Str("source", m.Source).
		Int("samples", m.Samples).
		Int("features", len(m.Features)).
		Msg("session created")
	return nil
}

func readBundle(ctx context.Context, reader storage.ObjectReader) (*model.Bundle, error) {
	rc, err := reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return model.DecodeBundle(rc)
}

func (s *Session) Manifest(ctx context.Context, id string) (*Manifest, error) {
	var m Manifest
	if err := s.cache.Load(ctx, id, DatatypeManifest, &m); err != nil {
		if errors.Is(err, errx.ErrNotFound) {
			return nil, errx.NotFound("session %s", id)
		}
		return nil, err
	}
	return &m, nil
}

func (s *Session) Exists(ctx context.Context, id string) (bool, error) {
	return s.published(ctx, id)
}

// published reports whether id has a manifest whose artifacts are still
// stored. Backends expire keys one by one, so the model, saved first, goes
// first; a manifest left behind without it is dropped.
func (s *Session) published(ctx context.Context, id string) (bool, error) {
	var m Manifest
	if err := s.cache.Load(ctx, id, DatatypeManifest, &m); err != nil {
		if errors.Is(err, errx.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	ok, err := s.cache.Exists(ctx, m.artifactKey(), DatatypeModel)
	if err != nil || ok {
		return ok, err
	}
	return false, s.unpublish(ctx, id)
}

func (s *Session) unpublish(ctx context.Context, id string) error {
	logx.Warn().Str("session_id", id).Msg("session artifacts expired before its manifest, dropping it")
	if err := s.cache.Delete(ctx, id, DatatypeManifest); err != nil && !errors.Is(err, errx.ErrNotFound) {
		return err
	}
	return nil
}

// Delete hides the session first, then removes its artifacts.
func (s *Session) Delete(ctx context.Context, id string) error {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, id, DatatypeManifest); err != nil {
		return err
	}
	key := m.artifactKey()
	for _, dt := range []string{DatatypeModel, DatatypeFeatures, DatatypeSHAP, DatatypeXTest, DatatypeYTest, DatatypeXTestTransformed} {
		if err := s.cache.Delete(ctx, key, dt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) load(ctx context.Context, id, datatype string, out any) error {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return err
	}
	err = s.cache.Load(ctx, m.artifactKey(), datatype, out)
	if errors.Is(err, errx.ErrNotFound) {
		if uerr := s.unpublish(ctx, id); uerr != nil {
			return uerr
		}
		return errx.NotFound("session %s", id)
	}
	return err
}

func (s *Session) Model(ctx context.Context, id string) (*model.Ensemble, error) {
	var e model.Ensemble
	if err := s.load(ctx, id, DatatypeModel, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Session) Features(ctx context.Context, id string) ([]string, error) {
	var f []string
	if err := s.load(ctx, id, DatatypeFeatures, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Session) SHAPValues(ctx context.Context, id string) (*mat.Dense, error) {
	var m mat.Dense
	if err := s.load(ctx, id, DatatypeSHAP, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) XTest(ctx context.Context, id string) (model.Frame, error) {
	var f model.Frame
	err := s.load(ctx, id, DatatypeXTest, &f)
	return f, err
}

func (s *Session) YTest(ctx context.Context, id string) (model.Labels, error) {
	var l model.Labels
	err := s.load(ctx, id, DatatypeYTest, &l)
	return l, err
}

func (s *Session) XTestTransformed(ctx context.Context, id string) (model.Frame, error) {
	var f model.Frame
	err := s.load(ctx, id, DatatypeXTestTransformed, &f)
	return f, err
}
