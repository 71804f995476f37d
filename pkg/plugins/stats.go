package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
)

const StatsName = "stats"

type StatsOptions struct {
	Filename string `mapstructure:"filename"`
	Modules  bool   `mapstructure:"modules"`
}

// Stats writes a JSON summary of the chunks and assets of every build.
type Stats struct {
	opts StatsOptions
}

func NewStats(options map[string]any, _ *slog.Logger) (ports.Plugin, error) {
	opts := StatsOptions{Filename: "stats.json"}
	if err := registry.Decode(options, &opts); err != nil {
		return nil, err
	}
	if opts.Filename == "" {
		return nil, fmt.Errorf("option filename must not be empty")
	}
	return &Stats{opts: opts}, nil
}

func (s *Stats) Name() string    { return StatsName }
func (s *Stats) Version() string { return "1.0.0" }

type chunkStats struct {
	Name    string   `json:"name"`
	Output  string   `json:"output"`
	Hash    string   `json:"hash"`
	Bytes   int      `json:"bytes"`
	Modules []string `json:"modules,omitempty"`
}

type assetStats struct {
	Module string `json:"module"`
	File   string `json:"file,omitempty"`
	Inline bool   `json:"inline"`
	Bytes  int    `json:"bytes"`
}

type statsFile struct {
	BuildID string       `json:"build_id"`
	Chunks  []chunkStats `json:"chunks"`
	Assets  []assetStats `json:"assets"`
}

func (s *Stats) Emit(ctx context.Context, ec ports.EmitContext) error {
	out := statsFile{BuildID: ec.BuildID, Chunks: []chunkStats{}, Assets: []assetStats{}}
	for _, c := range ec.Chunks {
		cs := chunkStats{Name: c.Name, Output: c.OutputFilename, Hash: c.Hash, Bytes: len(c.Code)}
		if s.opts.Modules {
			for _, id := range c.Modules {
				cs.Modules = append(cs.Modules, id.String())
			}
		}
		out.Chunks = append(out.Chunks, cs)
	}
	for _, m := range ec.Assets {
		if m.Asset == nil {
			continue
		}
		out.Assets = append(out.Assets, assetStats{
			Module: m.ID.String(),
			File:   m.Asset.FileName,
			Inline: m.Asset.Inline,
			Bytes:  m.Asset.SizeBytes,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	ec.AddArtifact(s.opts.Filename, data)
	return nil
}
