package generation

import (
	"fmt"
	"strings"

	"codexbridge/internal/appserver"
	"codexbridge/internal/logging"
	"codexbridge/internal/types"
)

const DefaultProviderName = "codex-app-server"

type providerConfig struct {
	logger     logging.Logger
	spawner    appserver.Spawner
	observer   appserver.ApprovalObserver
	clientInfo appserver.ClientInfo
}

type ProviderOption func(*providerConfig)

func WithLogger(logger logging.Logger) ProviderOption {
	return func(c *providerConfig) {
		c.logger = logger
	}
}

// WithSpawner replaces how the app-server child is started.
func WithSpawner(spawner appserver.Spawner) ProviderOption {
	return func(c *providerConfig) {
		c.spawner = spawner
	}
}

// WithApprovalObserver is told about every approval answered on the
// provider's session.
func WithApprovalObserver(observer appserver.ApprovalObserver) ProviderOption {
	return func(c *providerConfig) {
		c.observer = observer
	}
}

func WithClientInfo(info appserver.ClientInfo) ProviderOption {
	return func(c *providerConfig) {
		c.clientInfo = info
	}
}

// Provider owns one app-server session and the queue serialising every
// generation through it.
type Provider struct {
	name    string
	options types.ProviderOptions
	session *appserver.Session
	queue   *Queue
	logger  logging.Logger
}

// NewProvider validates opts and prepares a session. No child is started
// until the first generation.
func NewProvider(opts types.ProviderOptions, options ...ProviderOption) (*Provider, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	cfg := providerConfig{}
	for _, apply := range options {
		if apply != nil {
			apply(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = logging.Nop()
	}
	name := strings.TrimSpace(normalized.Name)
	if name == "" {
		name = DefaultProviderName
	}
	logger := cfg.logger.With(logging.F("provider", name))
	session := appserver.NewSession(appserver.SessionOptions{
		Command: appserver.CommandSpec{
			Path: normalized.CodexPath,
			Args: normalized.Args,
			Env:  normalized.Env,
		},
		Spawner: cfg.spawner,
		Responder: appserver.ApprovalResponder{
			Decision:       normalized.ApprovalDecision,
			LegacyDecision: normalized.LegacyApprovalDecision,
		},
		Observer:   cfg.observer,
		ClientInfo: cfg.clientInfo,
		Logger:     logger,
	})
	return &Provider{
		name:    name,
		options: normalized,
		session: session,
		queue:   NewQueue(),
		logger:  logger,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// LanguageModel returns a model generating with modelID unless the options
// carry a model override.
func (p *Provider) LanguageModel(modelID string) *Model {
	return &Model{
		provider: p.name,
		modelID:  strings.TrimSpace(modelID),
		options:  types.CloneProviderOptions(p.options),
		session:  p.session,
		queue:    p.queue,
		logger:   p.logger,
	}
}

func (p *Provider) EmbeddingModel(modelID string) error {
	return fmt.Errorf("%s does not support embeddings (%s): %w", p.name, modelID, ErrUnsupportedModelType)
}

func (p *Provider) ImageModel(modelID string) error {
	return fmt.Errorf("%s does not support images (%s): %w", p.name, modelID, ErrUnsupportedModelType)
}

// Close rejects new generations and stops the child.
func (p *Provider) Close() error {
	p.queue.Close()
	return p.session.Close()
}
