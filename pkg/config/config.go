// Package config loads and validates the translator's configuration
// surface, sourced from environment variables optionally
// populated by a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// API holds the credentials and endpoint for the remote translation
// service.
type API struct {
	AppKey     string
	AccessKey  string
	ResourceID string
	WSURL      string
}

// Audio holds the capture shape.
type Audio struct {
	SampleRate int
	Channels   int
	ChunkMs    int
}

// TargetAudio holds the playback shape the service renders TTS audio in.
type TargetAudio struct {
	Format string
	Rate   int
}

// Translation holds the session's language pair.
type Translation struct {
	Mode           string
	SourceLanguage string
	TargetLanguage string
}

// Devices holds optional input/output/conference device selection. A nil
// pointer means "system default".
type Devices struct {
	Input            *int
	Output           *int
	ConferenceOutput *int
}

// Config is the full, validated configuration surface consumed by the
// orchestrator. It is read-only once constructed; callers
// that need to change language or devices at runtime go through the
// orchestrator's SetLanguage/SetDevices, not by mutating this struct.
type Config struct {
	API         API
	Audio       Audio
	TargetAudio TargetAudio
	Translation Translation
	Devices     Devices
}

var supportedLanguages = map[string]bool{"zh": true, "en": true}

// Default returns the baseline configuration shape before environment
// overrides are applied; it has no credentials and must be validated
// after FromEnv populates them.
func Default() Config {
	return Config{
		API: API{
			ResourceID: "volc.service_type.10053",
			WSURL:      "wss://openspeech.bytedance.com/api/v4/ast/v2/translate",
		},
		Audio: Audio{
			SampleRate: 16000,
			Channels:   1,
			ChunkMs:    80,
		},
		TargetAudio: TargetAudio{
			Format: "pcm",
			Rate:   48000,
		},
		Translation: Translation{
			Mode:           "s2s",
			SourceLanguage: "zh",
			TargetLanguage: "en",
		},
	}
}

// FromEnv loads a .env file if present (missing is not an error — the
// process environment may already carry these variables) and builds a
// Config from LOKUTOR_* environment variables, falling back to Default()'s
// values for anything unset.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("LOKUTOR_API_APP_KEY"); v != "" {
		cfg.API.AppKey = v
	}
	if v := os.Getenv("LOKUTOR_API_ACCESS_KEY"); v != "" {
		cfg.API.AccessKey = v
	}
	if v := os.Getenv("LOKUTOR_API_RESOURCE_ID"); v != "" {
		cfg.API.ResourceID = v
	}
	if v := os.Getenv("LOKUTOR_WS_URL"); v != "" {
		cfg.API.WSURL = v
	}
	if v := os.Getenv("LOKUTOR_SOURCE_LANGUAGE"); v != "" {
		cfg.Translation.SourceLanguage = v
	}
	if v := os.Getenv("LOKUTOR_TARGET_LANGUAGE"); v != "" {
		cfg.Translation.TargetLanguage = v
	}

	var err error
	cfg.Devices.Input, err = parseOptionalInt("LOKUTOR_INPUT_DEVICE")
	if err != nil {
		return Config{}, err
	}
	cfg.Devices.Output, err = parseOptionalInt("LOKUTOR_OUTPUT_DEVICE")
	if err != nil {
		return Config{}, err
	}
	cfg.Devices.ConferenceOutput, err = parseOptionalInt("LOKUTOR_CONFERENCE_DEVICE")
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseOptionalInt(envVar string) (*int, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid device index %q: %w", envVar, v, err)
	}
	return &n, nil
}

// Validate refuses to start on missing credentials, an identical
// source/target language, or an unsupported language code.
func (c Config) Validate() error {
	if c.API.AppKey == "" {
		return fmt.Errorf("%w: app key is required", ErrConfigInvalid)
	}
	if c.API.AccessKey == "" {
		return fmt.Errorf("%w: access key is required", ErrConfigInvalid)
	}
	if c.Translation.SourceLanguage == c.Translation.TargetLanguage {
		return fmt.Errorf("%w: source and target language must differ", ErrConfigInvalid)
	}
	if !supportedLanguages[c.Translation.SourceLanguage] {
		return fmt.Errorf("%w: unsupported source language %q", ErrConfigInvalid, c.Translation.SourceLanguage)
	}
	if !supportedLanguages[c.Translation.TargetLanguage] {
		return fmt.Errorf("%w: unsupported target language %q", ErrConfigInvalid, c.Translation.TargetLanguage)
	}
	return nil
}
