// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed subjects.json
var defaultRegistry []byte

// LoadRegistry reads a registry file from disk.
func LoadRegistry(path string) (*SubjectRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() *SubjectRegistry {
	reg, err := Parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded subject registry is invalid: %v", err))
	}
	return reg
}

// Parse decodes a registry document and checks subjects are unique.
func Parse(data []byte) (*SubjectRegistry, error) {
	var reg SubjectRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	seen := make(map[string]string)
	for _, st := range reg.Streams {
		for _, sub := range st.Subjects {
			if other, ok := seen[sub.Name]; ok {
				return nil, fmt.Errorf("subject %s declared on both %s and %s", sub.Name, other, st.Name)
			}
			seen[sub.Name] = st.Name
		}
	}
	return &reg, nil
}

// Stream returns the stream named name.
func (r *SubjectRegistry) Stream(name string) (*Stream, bool) {
	for i := range r.Streams {
		if r.Streams[i].Name == name {
			return &r.Streams[i], true
		}
	}
	return nil, false
}

// StreamFor returns the stream that carries subject.
func (r *SubjectRegistry) StreamFor(subject string) (string, bool) {
	for _, st := range r.Streams {
		for _, sub := range st.Subjects {
			if sub.Name == subject {
				return st.Name, true
			}
		}
	}
	return "", false
}

// Subject looks up a subject definition.
func (r *SubjectRegistry) Subject(name string) (*Subject, bool) {
	for i := range r.Streams {
		for j := range r.Streams[i].Subjects {
			if r.Streams[i].Subjects[j].Name == name {
				return &r.Streams[i].Subjects[j], true
			}
		}
	}
	return nil, false
}

// Subjects lists the subject names of stream.
func (r *SubjectRegistry) Subjects(stream string) []string {
	st, ok := r.Stream(stream)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(st.Subjects))
	for _, sub := range st.Subjects {
		names = append(names, sub.Name)
	}
	return names
}
