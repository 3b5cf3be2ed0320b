package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/validation"
	"notification-workers/pkg/registry"
)

// Route binds one subject to a typed batch handler.
type Route struct {
	Subject string
	schema  *validation.Schema
	handle  func(ctx context.Context, data []byte) error
}

// Handle builds a Route whose payload (a single object or an array of them)
// is decoded into []T before fn is called.
func Handle[T any](subject string, fn func(ctx context.Context, items []T) error) Route {
	return Route{
		Subject: subject,
		handle: func(ctx context.Context, data []byte) error {
			items, err := decodeBatch[T](data)
			if err != nil {
				return errors.NewInvalidPayloadError(subject, err)
			}
			if len(items) == 0 {
				return nil
			}
			return fn(ctx, items)
		},
	}
}

// WithSchema validates every payload item against schema before decoding.
func (r Route) WithSchema(schema *validation.Schema) Route {
	r.schema = schema
	return r
}

// AttachSchemas sets each route's schema from the payload declared for its
// subject in reg. Routes whose subject is not registered are an error.
func AttachSchemas(reg *registry.SubjectRegistry, routes []Route) ([]Route, error) {
	out := make([]Route, len(routes))
	for i, r := range routes {
		sub, ok := reg.Subject(r.Subject)
		if !ok {
			return nil, fmt.Errorf("subject %s is not registered", r.Subject)
		}
		out[i] = r
		if len(sub.Payload) == 0 {
			continue
		}
		schema, err := validation.Compile(sub.Payload)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", r.Subject, err)
		}
		out[i] = r.WithSchema(schema)
	}
	return out, nil
}

func (r Route) dispatch(ctx context.Context, data []byte) error {
	if r.schema != nil {
		if err := r.validate(data); err != nil {
			return errors.NewInvalidPayloadError(r.Subject, err)
		}
	}
	return r.handle(ctx, data)
}

func (r Route) validate(data []byte) error {
	raws, err := splitBatch(data)
	if err != nil {
		return err
	}
	for i, raw := range raws {
		res, err := r.schema.Validate(raw)
		if err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("item %d: %s", i, res.Error())
		}
	}
	return nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func splitBatch(data []byte) ([]json.RawMessage, error) {
	if !isArray(data) {
		return []json.RawMessage{data}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return raws, nil
}

func decodeBatch[T any](data []byte) ([]T, error) {
	if isArray(data) {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}
