package parser

import (
	"fmt"
	"sort"
	"strings"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// Registry is the process-wide, read-only table of enabled parser backends.
// It is built once at startup and safe for concurrent use.
type Registry struct {
	vision   map[string]port.VisionParser
	document map[string]port.DocumentParser
}

// NewRegistry keeps the backends whose descriptors report Enabled.
func NewRegistry(vision []port.VisionParser, document []port.DocumentParser) *Registry {
	r := &Registry{
		vision:   map[string]port.VisionParser{},
		document: map[string]port.DocumentParser{},
	}
	for _, v := range vision {
		if d := v.Descriptor(); d.Enabled {
			r.vision[strings.ToLower(d.Name)] = v
		}
	}
	for _, p := range document {
		if d := p.Descriptor(); d.Enabled {
			r.document[strings.ToLower(d.Name)] = p
		}
	}
	return r
}

// Vision returns the enabled vision backend called name.
func (r *Registry) Vision(name string) (port.VisionParser, error) {
	v, ok := r.vision[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: vision parser %q", domain.ErrInvalidParser, name)
	}
	return v, nil
}

// Document returns the enabled document backend called name.
func (r *Registry) Document(name string) (port.DocumentParser, error) {
	p, ok := r.document[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: document parser %q", domain.ErrInvalidParser, name)
	}
	return p, nil
}

// Descriptors lists every enabled backend, vision first, sorted by name.
func (r *Registry) Descriptors() []domain.ParserDescriptor {
	var vision, document []domain.ParserDescriptor
	for _, v := range r.vision {
		vision = append(vision, v.Descriptor())
	}
	for _, p := range r.document {
		document = append(document, p.Descriptor())
	}
	byName := func(ds []domain.ParserDescriptor) {
		sort.Slice(ds, func(i, j int) bool { return ds[i].Name < ds[j].Name })
	}
	byName(vision)
	byName(document)
	return append(vision, document...)
}
