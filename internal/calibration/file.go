// File: internal/calibration/file.go
package calibration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Decode reads one YAML profile document. Keys missing from the document keep the
// values of Default(), so a profile only needs to list what differs.
func Decode(r io.Reader) (Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Profile{}, fmt.Errorf("%w: empty document", ErrInvalidProfile)
		}
		return Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Read loads and validates the profile stored at path.
func Read(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Load returns the profile at path, or Default() when path is empty, missing,
// unparsable or invalid. Load never fails; problems are logged.
func Load(path string, logger *zap.Logger) Profile {
	if path == "" {
		logger.Info("No calibration profile configured; using built-in defaults.")
		return Default()
	}
	p, err := Read(path)
	if err != nil {
		logger.Warn("Calibration profile unusable; falling back to built-in defaults.",
			zap.String("path", path), zap.Error(err))
		return Default()
	}
	logger.Info("Calibration profile loaded.", zap.String("path", path), zap.String("name", p.Name))
	return p
}

// Encode writes p as a YAML document.
func Encode(w io.Writer, p Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return enc.Close()
}

// Save validates p and writes it to path, replacing any existing file atomically.
func Save(path string, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".profile-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp profile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move profile into place: %w", err)
	}
	return nil
}
