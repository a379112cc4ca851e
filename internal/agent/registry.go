package agent

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/guidance"
	"github.com/msandnes/invoiceagent/internal/llm"
	"github.com/msandnes/invoiceagent/internal/store"
)

// Deps are the collaborators shared by every agent.
type Deps struct {
	Store     store.Store
	Extractor llm.Extractor
	Generator llm.Generator
	Guidance  *guidance.Service
	Exporter  Exporter
	Log       *logrus.Logger
}

// Registry hands out exactly one Agent per instance id, creating agents
// lazily on first access. Instance ids partition all state: agents for
// different ids share nothing but their injected collaborators.
type Registry struct {
	deps Deps

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewRegistry constructs a Registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:   deps,
		agents: make(map[string]*Agent),
	}
}

// Get returns the agent for an instance id, creating it on first access.
func (r *Registry) Get(instanceID string) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[instanceID]
	if !ok {
		a = newAgent(instanceID, r.deps)
		r.agents[instanceID] = a
	}
	return a
}
