// Package export writes task snapshots to disk.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/todoflow/internal/model"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("export: unknown format")

// Snapshot is the document written by Write.
type Snapshot struct {
	ExportedAt time.Time    `json:"exported_at" yaml:"exported_at"`
	Count      int          `json:"count" yaml:"count"`
	Tasks      []model.Task `json:"tasks" yaml:"tasks"`
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// FormatFromPath guesses the format from the file extension, defaulting
// to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Encode(tasks []model.Task, format Format, at time.Time) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	snap := Snapshot{ExportedAt: at.UTC(), Count: len(tasks), Tasks: tasks}
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Write replaces path with a snapshot of tasks. Readers see either the old
// file or the complete new one.
func Write(path string, tasks []model.Task, format Format, at time.Time) error {
	data, err := Encode(tasks, format, at)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
