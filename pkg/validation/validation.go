package validation

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"kalonconnect/internal/core/domain"
)

const MaxFilenameLength = 200

var (
	// filenameDisallowed matches everything outside the upload filename alphabet.
	filenameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

	dotRuns = regexp.MustCompile(`\.{2,}`)

	// SessionIDRegex validates session ID format
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

	dataURLPrefix = regexp.MustCompile(`^data:[a-zA-Z0-9.+/-]*(;[a-zA-Z0-9=.+-]+)*;base64,`)
)

// ValidateVideoConfig checks a document before it replaces the stored one.
// All problems are reported together, wrapped in domain.ErrInvalidConfig.
func ValidateVideoConfig(cfg domain.VideoSystemConfig) error {
	var problems []string

	if !cfg.DefaultSystem.Valid() {
		problems = append(problems, fmt.Sprintf("unknown defaultSystem %q", cfg.DefaultSystem))
	}
	if len(cfg.Options) == 0 {
		problems = append(problems, "options must not be empty")
	}
	seen := make(map[domain.VideoSystem]bool, len(cfg.Options))
	for _, opt := range cfg.Options {
		if !opt.Valid() {
			problems = append(problems, fmt.Sprintf("unknown option %q", opt))
		}
		if seen[opt] {
			problems = append(problems, fmt.Sprintf("duplicate option %q", opt))
		}
		seen[opt] = true
	}
	if cfg.DefaultSystem.Valid() && len(cfg.Options) > 0 && !cfg.HasOption(cfg.DefaultSystem) {
		problems = append(problems, fmt.Sprintf("defaultSystem %q is not one of options", cfg.DefaultSystem))
	}
	if !cfg.VideoQuality.Valid() {
		problems = append(problems, fmt.Sprintf("videoQuality must be sd or hd, got %q", cfg.VideoQuality))
	}
	if strings.TrimSpace(cfg.Recording.StoragePath) == "" {
		problems = append(problems, "recording.storagePath is required")
	}
	if cfg.WaitingRoom != nil {
		if strings.TrimSpace(cfg.WaitingRoom.Background) == "" {
			problems = append(problems, "waitingRoom.background is required when waitingRoom is set")
		}
		if strings.TrimSpace(cfg.WaitingRoom.AmbienceAudio) == "" {
			problems = append(problems, "waitingRoom.ambienceAudio is required when waitingRoom is set")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SanitizeFilename reduces name to [a-zA-Z0-9-_.] with no parent references
// and no leading dot. It may return "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = filenameDisallowed.ReplaceAllString(strings.TrimSpace(name), "_")
	name = dotRuns.ReplaceAllString(name, ".")
	name = strings.TrimLeft(name, ".")
	if len(name) > MaxFilenameLength {
		name = name[len(name)-MaxFilenameLength:]
		name = strings.TrimLeft(name, ".")
	}
	return name
}

// DecodeBase64Payload decodes a standard base64 payload, optionally wrapped
// as a data URL.
func DecodeBase64Payload(payload string) ([]byte, error) {
	payload = base64Body(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidRecording)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecording, err)
	}
	return data, nil
}

// DecodedLen is the upper bound of bytes payload decodes to, used to
// reject oversized uploads before decoding them.
func DecodedLen(payload string) int64 {
	return int64(base64.StdEncoding.DecodedLen(len(base64Body(payload))))
}

// base64Body trims payload and strips an optional data URL prefix.
func base64Body(payload string) string {
	payload = strings.TrimSpace(payload)
	if loc := dataURLPrefix.FindStringIndex(payload); loc != nil {
		payload = payload[loc[1]:]
	}
	return strings.TrimSpace(payload)
}

// ValidateSessionID validates session ID
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if !SessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
