package runtime

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/bale/internal/asset"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
)

// ErrArtifactPath is returned for emit hook artifacts named outside the
// output directory.
var ErrArtifactPath = errors.New("artifact path outside the output directory")

// stagedPrefix starts the name of a file written next to its destination
// before the build commits it.
const stagedPrefix = ".bale-"

type output struct {
	name string
	data []byte
}

// previous is what a destination held before a commit replaced it.
type previous struct {
	target  string
	data    []byte
	existed bool
}

// emit collects assets, chunks, plugin artifacts and the manifest, in that
// order, and commits them to the output directory. It returns the written
// files by output name.
func (e *Engine) emit(ctx context.Context, r *domain.BuildResult, g *domain.Graph) (map[string][]byte, error) {
	var files []output
	seen := make(map[string]bool)
	add := func(name string, data []byte) {
		files = append(files, output{name: name, data: data})
		seen[name] = true
	}

	var assets []*domain.Module
	for _, id := range r.Assets {
		mod, ok := g.Get(id)
		if !ok || mod.Asset == nil {
			continue
		}
		assets = append(assets, mod)
		if mod.Asset.Inline {
			continue
		}
		name := asset.FileNameOnDisk(mod.Asset.FileName)
		if seen[name] {
			continue
		}
		add(name, mod.RawSource)
	}

	for _, c := range r.Chunks {
		add(c.OutputFilename, c.Code)
	}

	for _, em := range e.emitters {
		var (
			mu    sync.Mutex
			extra []string
			data  = make(map[string][]byte)
		)
		ec := ports.EmitContext{
			BuildID: r.BuildID,
			Chunks:  r.Chunks,
			Assets:  assets,
			AddArtifact: func(name string, b []byte) {
				mu.Lock()
				defer mu.Unlock()
				if _, dup := data[name]; !dup {
					extra = append(extra, name)
				}
				data[name] = append([]byte(nil), b...)
			},
		}
		if err := em.Emit(ctx, ec); err != nil {
			return nil, fmt.Errorf("plugin %s emit: %w", em.Name(), err)
		}
		sort.Strings(extra)
		for _, raw := range extra {
			name, err := artifactName(raw)
			if err != nil {
				return nil, fmt.Errorf("plugin %s emit: %w", em.Name(), err)
			}
			add(name, data[raw])
		}
	}

	if e.manifest {
		data, err := BuildManifest(e.root, r).Marshal()
		if err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		add(ManifestName, data)
	}

	if err := e.commit(ctx, r.BuildID, files); err != nil {
		return nil, err
	}

	outputs := make(map[string][]byte, len(files))
	for _, f := range files {
		outputs[f.name] = f.data
		r.Artifacts = append(r.Artifacts, domain.Artifact{Name: f.name, Bytes: len(f.data), Hash: asset.Hash(f.data)})
		r.Stats.BytesWritten += len(f.data)
	}
	return outputs, nil
}

// artifactName cleans a plugin artifact name, which must stay inside the
// output directory.
func artifactName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if clean == "." || clean == ".." || path.IsAbs(clean) || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrArtifactPath, name)
	}
	return clean, nil
}

// commit writes every file under a staged name beside its destination, then
// renames them into place in order. No destination is touched until all
// files are staged; a failed rename restores the destinations already
// replaced. Staged files never outlive the call.
func (e *Engine) commit(ctx context.Context, buildID string, files []output) error {
	tag := stagedPrefix + buildID
	if len(tag) > len(stagedPrefix)+8 {
		tag = tag[:len(stagedPrefix)+8]
	}

	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, p := range staged {
			if err := e.fs.Remove(context.WithoutCancel(ctx), p); err != nil {
				e.logger.Warn("failed to remove staged file", "file", p, "err", err)
			}
		}
	}

	prev := make([]previous, len(files))
	for i, f := range files {
		target := path.Join(e.outDir, f.name)
		tmp := path.Join(path.Dir(target), tag+"-"+strconv.Itoa(i)+"-"+path.Base(target))
		if err := e.retry(ctx, target, func() error { return e.fs.WriteFile(ctx, tmp, f.data) }); err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)

		data, err := e.fs.ReadFile(ctx, target)
		switch {
		case err == nil:
			prev[i] = previous{target: target, data: data, existed: true}
		case errors.Is(err, domain.ErrNotFound):
			prev[i] = previous{target: target}
		default:
			cleanup()
			return &domain.EmitError{File: target, Attempts: 1, Cause: err}
		}
	}

	for i := range files {
		target := prev[i].target
		if err := e.retry(ctx, target, func() error { return e.fs.Rename(ctx, staged[i], target) }); err != nil {
			e.rollback(ctx, prev[:i])
			cleanup()
			return err
		}
	}
	return nil
}

// rollback puts back what the destinations held before, newest first.
func (e *Engine) rollback(ctx context.Context, done []previous) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		var err error
		if p.existed {
			err = e.fs.WriteFile(ctx, p.target, p.data)
		} else {
			err = e.fs.Remove(ctx, p.target)
		}
		if err != nil {
			e.logger.Error("failed to restore previous output", "file", p.target, "err", err)
		}
	}
}

// retry runs op until it succeeds, backing off exponentially between
// attempts. file names the destination in the returned EmitError.
func (e *Engine) retry(ctx context.Context, file string, op func() error) error {
	delay := e.backoff
	attempts := 0
	for {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if attempts > e.retries || ctx.Err() != nil {
			return &domain.EmitError{File: file, Attempts: attempts, Cause: err}
		}
		e.logger.Warn("write failed, retrying", "file", file, "attempt", attempts, "err", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return &domain.EmitError{File: file, Attempts: attempts, Cause: err}
		case <-t.C:
		}
		delay *= 2
	}
}
