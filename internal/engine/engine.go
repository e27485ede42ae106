// Package engine implements the process-wide handle (spec.md §5
// "Shared mutable state"): three maps — named DataFrames, named
// Pipelines, and the two append-only Encodings (categories, join
// keys) — each guarded by its own read/write lock, reachable from
// every command the server dispatches.
//
// Grounded on the teacher's internal/dialect registry idiom (already
// reused once for internal/dialect's own Type -> constructor map):
// the same sync.RWMutex-guarded map-of-names shape, here holding
// live DataFrame/Pipeline values instead of dialect constructors.
package engine

import (
	"sync"

	"relfit/internal/dataframe"
	"relfit/internal/encoding"
	"relfit/internal/engineerr"
	"relfit/internal/pipeline"
)

// Engine is the process-wide handle every command-server operation
// runs against. The zero value is not usable; construct with New.
type Engine struct {
	categories *encoding.Encoding
	joinKeys   *encoding.Encoding

	framesMu sync.RWMutex
	frames   map[string]*dataframe.DataFrame

	pipelinesMu sync.RWMutex
	pipelines   map[string]*pipeline.Pipeline
}

// New constructs an empty Engine with fresh Encodings.
func New() *Engine {
	return &Engine{
		categories: encoding.New(),
		joinKeys:   encoding.New(),
		frames:     make(map[string]*dataframe.DataFrame),
		pipelines:  make(map[string]*pipeline.Pipeline),
	}
}

// Categories returns the process-wide category Encoding (spec.md §3
// "Encoding": append-only string<->integer interner).
func (e *Engine) Categories() *encoding.Encoding { return e.categories }

// JoinKeys returns the process-wide join-key Encoding.
func (e *Engine) JoinKeys() *encoding.Encoding { return e.joinKeys }

// RegisterDataFrame stores df under name, replacing any prior
// DataFrame registered under the same name (spec.md §6: `DataFrame`,
// `DataFrame.from_db`, ... commands all end by registering a named
// DataFrame in this map).
func (e *Engine) RegisterDataFrame(name string, df *dataframe.DataFrame) {
	e.framesMu.Lock()
	defer e.framesMu.Unlock()
	e.frames[name] = df
}

// DataFrame returns the DataFrame registered under name.
func (e *Engine) DataFrame(name string) (*dataframe.DataFrame, error) {
	e.framesMu.RLock()
	defer e.framesMu.RUnlock()
	df, ok := e.frames[name]
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "engine: no data frame registered under %q", name)
	}
	return df, nil
}

// ListDataFrames returns the names of every registered DataFrame.
func (e *Engine) ListDataFrames() []string {
	e.framesMu.RLock()
	defer e.framesMu.RUnlock()
	out := make([]string, 0, len(e.frames))
	for name := range e.frames {
		out = append(out, name)
	}
	return out
}

// DropDataFrame removes the DataFrame registered under name, if any.
func (e *Engine) DropDataFrame(name string) {
	e.framesMu.Lock()
	defer e.framesMu.Unlock()
	delete(e.frames, name)
}

// RegisterPipeline stores p under name (spec.md §6 `Pipeline.fit`
// registers its result so later `Pipeline.transform`/`Pipeline.score`/
// `Pipeline.to_sql` commands can look it up by name).
func (e *Engine) RegisterPipeline(name string, p *pipeline.Pipeline) {
	e.pipelinesMu.Lock()
	defer e.pipelinesMu.Unlock()
	e.pipelines[name] = p
}

// Pipeline returns the Pipeline registered under name.
func (e *Engine) Pipeline(name string) (*pipeline.Pipeline, error) {
	e.pipelinesMu.RLock()
	defer e.pipelinesMu.RUnlock()
	p, ok := e.pipelines[name]
	if !ok {
		return nil, engineerr.Newf(engineerr.NotFitted, "engine: no pipeline registered under %q", name)
	}
	return p, nil
}

// ListPipelines returns the names of every registered Pipeline.
func (e *Engine) ListPipelines() []string {
	e.pipelinesMu.RLock()
	defer e.pipelinesMu.RUnlock()
	out := make([]string, 0, len(e.pipelines))
	for name := range e.pipelines {
		out = append(out, name)
	}
	return out
}
