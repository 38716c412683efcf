// Package strict wraps a domain/transport.Bus with optional envelope
// payload validation against a JSON schema. Bootstrap does not construct
// it, and Debug.TraceSpawn does not switch it on. Grounded on the pack's own
// gojsonschema.SchemaValidator usage pattern (filegrind-capns-go's
// schema_validation.go): compile once, validate per call, wrap failures
// with enough context to find the offending envelope.
package strict

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	domain "github.com/danbao/testring-sub000/internal/domain/transport"
)

// DefaultSchema accepts any JSON object payload. A real deployment would
// supply a tighter per-type schema; this engine has no such catalogue, so
// the default only catches the common mistake of sending a non-object
// payload (e.g. a bare string or a malformed document).
const DefaultSchema = `{"type": "object"}`

// Bus decorates an underlying domain/transport.Bus, validating every
// outgoing Broadcast/Send payload against schema before delegating.
type Bus struct {
	domain.Bus
	schema *gojsonschema.Schema
}

// New wraps inner with strict-mode validation using schemaJSON (pass
// DefaultSchema when the caller has no tighter schema to enforce).
func New(inner domain.Bus, schemaJSON string) (*Bus, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("strict transport: compile schema: %w", err)
	}
	return &Bus{Bus: inner, schema: schema}, nil
}

func (b *Bus) validate(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	result, err := b.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("strict transport: validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("strict transport: payload rejected: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Broadcast validates payload before delegating to the wrapped Bus.
func (b *Bus) Broadcast(ctx context.Context, typ string, payload []byte) error {
	if err := b.validate(payload); err != nil {
		return err
	}
	return b.Bus.Broadcast(ctx, typ, payload)
}

// BroadcastFrom validates payload before delegating to the wrapped Bus.
func (b *Bus) BroadcastFrom(ctx context.Context, typ string, payload []byte, sourceID string) error {
	if err := b.validate(payload); err != nil {
		return err
	}
	return b.Bus.BroadcastFrom(ctx, typ, payload, sourceID)
}

// Send validates payload before delegating to the wrapped Bus.
func (b *Bus) Send(ctx context.Context, destID, typ string, payload []byte) (domain.Envelope, error) {
	if err := b.validate(payload); err != nil {
		return domain.Envelope{}, err
	}
	return b.Bus.Send(ctx, destID, typ, payload)
}

var _ domain.Bus = (*Bus)(nil)
