// pkg/registry/schema.go
package registry

// SubjectRegistry describes every stream the workers consume or publish to.
type SubjectRegistry struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Streams     []Stream `json:"streams"`
}

// Stream is one Redis stream (or Zeebe job-type family) and the subjects carried on it.
type Stream struct {
	Name        string    `json:"name"`
	Durable     string    `json:"durable"`
	Broadcast   bool      `json:"broadcast"`
	Description string    `json:"description"`
	Subjects    []Subject `json:"subjects"`
}

// Subject is one message name with the JSON schema of a single payload item.
// Producers may send one item or an array of them.
type Subject struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Payload     map[string]interface{} `json:"payload"`
	Tags        []string               `json:"tags,omitempty"`
}
