package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Transcriber, error)
	tts map[string]func(ProviderEntry) (tts.Synthesizer, error)
	vad map[string]func(ProviderEntry) (vad.Detector, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Synthesizer, error)),
		vad: make(map[string]func(ProviderEntry) (vad.Detector, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a synthesizer factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterVAD registers a voice-activity detector factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates a transcriber using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a synthesizer using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a voice-activity detector using the factory
// registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Detector, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
