package retrieval

import (
	"context"
	"fmt"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/databases"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/embedders"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/registry"
)

// Service routes search requests to named pipelines.
type Service struct {
	pipelines *registry.BaseRegistry[*Pipeline]
}

// NewServiceFromConfig builds every configured pipeline. Each pipeline
// resolves its vector store from the databases registry by name.
func NewServiceFromConfig(cfg *config.RetrievalConfig, embReg *embedders.Registry, dbReg *databases.Registry) (*Service, error) {
	s := &Service{pipelines: registry.NewBaseRegistry[*Pipeline]()}
	for name, pc := range cfg.Pipelines {
		store, ok := dbReg.Get(pc.Database)
		if !ok {
			return nil, fmt.Errorf("pipeline %q: database %q not found", name, pc.Database)
		}
		pipeline, err := NewPipeline(name, pc, embReg, store)
		if err != nil {
			return nil, err
		}
		if err := s.pipelines.Register(name, pipeline); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Pipeline returns the named pipeline.
func (s *Service) Pipeline(name string) (*Pipeline, error) {
	p, ok := s.pipelines.Get(name)
	if !ok {
		return nil, &ErrPipelineNotFound{Name: name}
	}
	return p, nil
}

// Names lists the configured pipelines.
func (s *Service) Names() []string {
	return s.pipelines.Names()
}

// Search runs one query through the named pipeline.
func (s *Service) Search(ctx context.Context, pipelineName, query string, topK int) ([]Chunk, error) {
	p, err := s.Pipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, query, topK)
}

// Close closes every pipeline.
func (s *Service) Close() error {
	var firstErr error
	for _, p := range s.pipelines.List() {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.pipelines.Clear()
	return firstErr
}
