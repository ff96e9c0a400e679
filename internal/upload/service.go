// Package upload brokers direct-to-storage transfers: it issues presigned
// URLs, aliases keys behind short ids and manages multipart sessions. No
// payload bytes pass through it.
package upload

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/registry"
	"github.com/stefando/shareDrop/internal/storage"
)

// maxShortIDAttempts bounds regeneration when a fresh short id is already registered
const maxShortIDAttempts = 5

// Options wires a Service. Zero values fall back to the package defaults.
type Options struct {
	Backend  storage.Backend
	Registry registry.Registry
	Sessions *SessionTable
	Policy   Policy

	URLExpiry       time.Duration
	MinPartSize     int64
	DefaultPartSize int64

	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger

	// Clock and NewShortID are replaceable for tests
	Clock      func() time.Time
	NewShortID func() (string, error)
}

// Service handles presigned URL issuance and multipart orchestration
type Service struct {
	backend  storage.Backend
	registry registry.Registry
	sessions *SessionTable
	policy   Policy

	urlExpiry       time.Duration
	minPartSize     int64
	defaultPartSize int64

	metrics *metrics.Metrics
	log     logrus.FieldLogger

	now        func() time.Time
	newShortID func() (string, error)
}

// NewService creates a new upload service
func NewService(opts Options) *Service {
	s := &Service{
		backend:         opts.Backend,
		registry:        opts.Registry,
		sessions:        opts.Sessions,
		policy:          opts.Policy,
		urlExpiry:       opts.URLExpiry,
		minPartSize:     opts.MinPartSize,
		defaultPartSize: opts.DefaultPartSize,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		now:             opts.Clock,
		newShortID:      opts.NewShortID,
	}

	if s.registry == nil {
		s.registry = registry.NewMemoryRegistry(registry.Options{})
	}
	if s.sessions == nil {
		s.sessions = NewSessionTable(DefaultSessionMaxEntries, DefaultSessionTTL)
	}
	if s.urlExpiry <= 0 {
		s.urlExpiry = config.DefaultURLExpirySeconds * time.Second
	}
	if s.minPartSize <= 0 {
		s.minPartSize = config.MinPartSize
	}
	if s.defaultPartSize <= 0 {
		s.defaultPartSize = config.DefaultPartSize
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newShortID == nil {
		s.newShortID = func() (string, error) { return registry.NewShortID(registry.ShortIDLength) }
	}
	return s
}

// NewServiceFromConfig wires a service from the loaded server configuration.
func NewServiceFromConfig(cfg *config.Config, backend storage.Backend, m *metrics.Metrics, log logrus.FieldLogger) *Service {
	return NewService(Options{
		Backend: backend,
		Registry: registry.NewMemoryRegistry(registry.Options{
			TTL:        cfg.Registry.TTL,
			MaxEntries: cfg.Registry.MaxEntries,
		}),
		Policy: Policy{
			MaxFileSize:  cfg.Upload.MaxFileSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		URLExpiry:       cfg.Upload.URLExpiry,
		MinPartSize:     cfg.Upload.MinPartSize,
		DefaultPartSize: cfg.Upload.DefaultPartSize,
		Metrics:         m,
		Logger:          log,
	})
}

// Registry exposes the short id registry backing the service.
func (s *Service) Registry() registry.Registry {
	return s.registry
}

func (s *Service) expiresIn() int {
	return int(s.urlExpiry / time.Second)
}

// mintShortID generates a short id not currently registered. After
// maxShortIDAttempts collisions the last candidate is used and will
// overwrite the existing mapping.
func (s *Service) mintShortID(op string) (string, error) {
	var id string
	for attempt := 1; attempt <= maxShortIDAttempts; attempt++ {
		candidate, err := s.newShortID()
		if err != nil {
			return "", apperr.New(op, "", err)
		}
		id = candidate
		if _, taken := s.registry.Lookup(id); !taken {
			return id, nil
		}
		s.log.WithFields(logrus.Fields{"short_id": id, "attempt": attempt}).Debug("Short id collision, regenerating")
	}

	s.log.WithField("short_id", id).Warn("Short id still colliding after retries, overwriting existing mapping")
	return id, nil
}

// fail records a failed operation and returns err unchanged
func (s *Service) fail(op string, err error) error {
	s.metrics.Failure(op, string(apperr.KindOf(err)))

	entry := s.log.WithFields(logrus.Fields{"op": op, "error": err})
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindPolicy, apperr.KindNotFound:
		entry.Info("Request rejected")
	default:
		entry.Error("Operation failed")
	}
	return err
}
