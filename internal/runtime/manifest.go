package runtime

import (
	"encoding/json"
	"sort"

	"github.com/aretw0/bale/pkg/domain"
)

// ManifestName is the file the manifest is written to, last in a build.
const ManifestName = "manifest.json"

// Manifest maps every module to the file that carries it, plus esbuild-style
// inputs/outputs metadata.
type Manifest struct {
	BuildID string                    `json:"build_id"`
	Modules map[string]string         `json:"modules"`
	Inputs  map[string]ManifestInput  `json:"inputs"`
	Outputs map[string]ManifestOutput `json:"outputs"`
}

type ManifestInput struct {
	Bytes   int              `json:"bytes"`
	Kind    string           `json:"kind"`
	Imports []ManifestImport `json:"imports"`
}

type ManifestImport struct {
	Path     string `json:"path,omitempty"`
	Kind     string `json:"kind"`
	Original string `json:"original"`
	Optional bool   `json:"optional,omitempty"`
}

type ManifestOutput struct {
	Bytes      int                     `json:"bytes"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
	Inputs     map[string]InputContrib `json:"inputs,omitempty"`
}

// InputContrib is the share of an output coming from one input.
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// BuildManifest describes a linked build relative to root.
func BuildManifest(root string, r *domain.BuildResult) *Manifest {
	m := &Manifest{
		BuildID: r.BuildID,
		Modules: make(map[string]string),
		Inputs:  make(map[string]ManifestInput),
		Outputs: make(map[string]ManifestOutput),
	}
	if r.Graph != nil {
		for _, id := range r.Graph.IDs() {
			mod, _ := r.Graph.Get(id)
			in := ManifestInput{Bytes: len(mod.RawSource), Kind: string(mod.Kind), Imports: []ManifestImport{}}
			for _, d := range mod.Dependencies {
				imp := ManifestImport{Kind: string(d.Kind), Original: d.Specifier, Optional: d.Optional}
				if d.Resolved != "" {
					imp.Path = d.Resolved.Rel(root)
				}
				in.Imports = append(in.Imports, imp)
			}
			m.Inputs[id.Rel(root)] = in

			// inlined assets live in the chunk that embeds them
			if mod.Asset != nil && !mod.Asset.Inline {
				m.Modules[id.Rel(root)] = mod.Asset.FileName
				m.Outputs[mod.Asset.FileName] = ManifestOutput{
					Bytes:  mod.Asset.SizeBytes,
					Inputs: map[string]InputContrib{id.Rel(root): {BytesInOutput: mod.Asset.SizeBytes}},
				}
			}
		}
	}

	chunks := append([]*domain.Chunk(nil), r.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Name < chunks[j].Name })
	for _, c := range chunks {
		out := ManifestOutput{
			Bytes:      len(c.Code),
			EntryPoint: c.Entry.Rel(root),
			Inputs:     make(map[string]InputContrib, len(c.Segments)),
		}
		for _, s := range c.Segments {
			out.Inputs[s.Key] = InputContrib{BytesInOutput: s.Bytes}
			if _, emitted := m.Modules[s.Key]; !emitted {
				m.Modules[s.Key] = c.OutputFilename
			}
		}
		m.Outputs[c.OutputFilename] = out
	}
	return m
}

// Marshal renders the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
