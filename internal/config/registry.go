package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mirelo-dev/cantora/pkg/provider/stt"
	"github.com/mirelo-dev/cantora/pkg/provider/stt/deepgram"
	sttmock "github.com/mirelo-dev/cantora/pkg/provider/stt/mock"
	sttopenai "github.com/mirelo-dev/cantora/pkg/provider/stt/openai"
	"github.com/mirelo-dev/cantora/pkg/provider/stt/whisper"
)

// ErrBackendNotRegistered is returned by [Registry.CreateSTT] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: stt backend not registered")

// Registry maps STT backend names to their constructor functions. It is
// safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(BackendEntry) (stt.Transcriber, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(BackendEntry) (stt.Transcriber, error)),
	}
}

// RegisterSTT registers an STT backend factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(BackendEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateSTT instantiates an STT backend using the factory registered under
// entry.Name. Returns [ErrBackendNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry BackendEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, entry.Name)
	}
	t, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create stt backend %q: %w", entry.Name, err)
	}
	return t, nil
}

// DefaultRegistry returns a [Registry] with all built-in STT backends
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSTT("whisper", func(e BackendEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		return whisper.New(e.BaseURL, opts...)
	})

	r.RegisterSTT("whisper-native", func(e BackendEntry) (stt.Transcriber, error) {
		return whisper.NewNative(e.Model)
	})

	r.RegisterSTT("deepgram", func(e BackendEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		return deepgram.New(e.APIKey, opts...)
	})

	r.RegisterSTT("openai", func(e BackendEntry) (stt.Transcriber, error) {
		var opts []sttopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(e.BaseURL))
		}
		return sttopenai.New(e.APIKey, e.Model, opts...)
	})

	r.RegisterSTT("mock", func(BackendEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{}, nil
	})

	return r
}
