package config

import (
	"errors"
	"testing"

	llmmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm/mock"
	ttsmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts/mock"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
)

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var gotEntry ProviderEntry
	r.RegisterLLM("fake", func(e ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return &llmmock.Provider{}, nil
	})
	r.RegisterTTS("fake", func(ProviderEntry) (tts.Synthesizer, error) {
		return &ttsmock.Synthesizer{}, nil
	})

	entry := ProviderEntry{Name: "fake", Model: "test-model", APIKey: "k"}
	p, err := r.CreateLLM(entry)
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p == nil {
		t.Fatal("nil provider")
	}
	if gotEntry.Model != "test-model" || gotEntry.APIKey != "k" {
		t.Errorf("factory entry = %+v", gotEntry)
	}

	if _, err := r.CreateTTS(ProviderEntry{Name: "fake"}); err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
}

func TestRegistryUnregistered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.CreateSTT(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateVAD(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}
