package config

import (
	"errors"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.API.AppKey = "app-key"
	cfg.API.AccessKey = "access-key"
	cfg.Translation.SourceLanguage = "zh"
	cfg.Translation.TargetLanguage = "en"
	return cfg
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.API.AppKey = ""
	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestValidateRejectsIdenticalLanguages(t *testing.T) {
	cfg := validConfig()
	cfg.Translation.TargetLanguage = cfg.Translation.SourceLanguage
	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestValidateRejectsUnsupportedLanguage(t *testing.T) {
	cfg := validConfig()
	cfg.Translation.TargetLanguage = "fr"
	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestDefaultMatchesSpecShapes(t *testing.T) {
	cfg := Default()
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkMs != 80 {
		t.Fatalf("unexpected audio shape: %+v", cfg.Audio)
	}
	if cfg.TargetAudio.Rate != 48000 || cfg.TargetAudio.Format != "pcm" {
		t.Fatalf("unexpected target audio shape: %+v", cfg.TargetAudio)
	}
	if cfg.API.ResourceID != "volc.service_type.10053" {
		t.Fatalf("unexpected default resource id: %q", cfg.API.ResourceID)
	}
}
