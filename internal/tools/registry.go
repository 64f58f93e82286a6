// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"sync"

	"toolloop/internal/paths"
)

// DefaultConfirmList names the tools that change state outside of reading.
var DefaultConfirmList = []string{NameWriteFile, NameRunScript}

// Registry is the fixed set of tools available to the model. It is built
// once per process and has no mutators.
type Registry struct {
	root    paths.Root
	specs   []Spec
	byName  map[string]int
	limits  Limits
	filters OutputFilterConfig
	confirm map[string]bool
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithLimits overrides the size and time bounds of the capability functions.
func WithLimits(limits Limits) RegistryOption {
	return func(r *Registry) {
		r.limits = normalizeLimits(limits)
	}
}

// WithOutputFilters overrides how run_script output is sanitized.
func WithOutputFilters(filters OutputFilterConfig) RegistryOption {
	return func(r *Registry) {
		r.filters = normalizeOutputFilterConfig(filters)
	}
}

// WithConfirmation replaces the list of tools that need approval before they
// run. Unknown names are ignored.
func WithConfirmation(names ...string) RegistryOption {
	return func(r *Registry) {
		r.confirm = make(map[string]bool, len(names))
		for _, name := range names {
			if _, ok := r.byName[name]; ok {
				r.confirm[name] = true
			}
		}
	}
}

var (
	builtinOnce  sync.Once
	builtinSpecs []Spec
)

func builtins() []Spec {
	builtinOnce.Do(func() {
		builtinSpecs = []Spec{
			newSpec[listDirectoryArgs](KindListDirectory,
				"List the files and directories directly inside a directory of the working directory. "+
					"Returns name, is_dir and size (null for directories) for each entry."),
			newSpec[readFileArgs](KindReadFile,
				"Read the text content of a file in the working directory. "+
					"Content longer than 10000 characters is truncated."),
			newSpec[writeFileArgs](KindWriteFile,
				"Create or overwrite a text file in the working directory. "+
					"Parent directories must already exist."),
			newSpec[runScriptArgs](KindRunScript,
				"Run a script from the working directory and return its stdout, stderr and exit code. "+
					".py files run with python3, .sh files with sh, other files are executed directly."),
		}
	})
	return builtinSpecs
}

func newSpec[T any](kind Kind, description string) Spec {
	parameters, params := mustSchemaFor[T]()
	return Spec{
		Kind:        kind,
		Name:        kind.String(),
		Description: description,
		Parameters:  parameters,
		Params:      params,
	}
}

// NewRegistry builds the registry for root. By default write_file and
// run_script require confirmation when an approval hook is installed.
func NewRegistry(root paths.Root, opts ...RegistryOption) *Registry {
	specs := builtins()
	r := &Registry{
		root:    root,
		specs:   specs,
		byName:  make(map[string]int, len(specs)),
		limits:  DefaultLimits(),
		filters: DefaultOutputFilterConfig(),
	}
	for i, spec := range specs {
		r.byName[spec.Name] = i
	}
	WithConfirmation(DefaultConfirmList...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the working root every tool is confined to.
func (r *Registry) Root() paths.Root {
	return r.root
}

// Lookup finds a tool by the name the model used.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Specs returns the tool specs in a stable order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Names returns the tool names in the same order as Specs.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		names = append(names, spec.Name)
	}
	return names
}

// RequiresConfirmation reports whether name is gated by the approval hook.
func (r *Registry) RequiresConfirmation(name string) bool {
	return r.confirm[name]
}
