package activity

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-pipeline/internal/common/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://go-pipeline.local/schemas/"

// ErrUnknownIntegration is returned for an integration type with no handler.
var ErrUnknownIntegration = errors.New("unknown integration")

// ValidationError reports a payload that is not valid JSON or misses required fields.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// mapped is the part of an Activity derived from a webhook payload.
type mapped struct {
	DealID      string
	Title       string
	Description *string
	Metadata    map[string]any
}

type integration struct {
	schema *jsonschema.Schema
	toRow  func(p payload, now time.Time) mapped
}

// Registry validates and maps inbound payloads per integration type.
type Registry struct {
	integrations map[models.ActivityType]integration
	note         *jsonschema.Schema
}

func NewRegistry() (*Registry, error) {
	c := jsonschema.NewCompiler()
	compile := func(name string) (*jsonschema.Schema, error) {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		url := schemaBaseURL + name
		if err := c.AddResource(url, doc); err != nil {
			return nil, err
		}
		return c.Compile(url)
	}

	r := &Registry{integrations: map[models.ActivityType]integration{}}
	for typ, toRow := range map[models.ActivityType]func(payload, time.Time) mapped{
		models.ActivityTypeGmail:   gmailActivity,
		models.ActivityTypeTwilio:  twilioActivity,
		models.ActivityTypeShopify: shopifyActivity,
	} {
		sch, err := compile(string(typ) + ".json")
		if err != nil {
			return nil, err
		}
		r.integrations[typ] = integration{schema: sch, toRow: toRow}
	}

	note, err := compile("note.json")
	if err != nil {
		return nil, err
	}
	r.note = note
	return r, nil
}

// Supports reports whether typ has a webhook endpoint.
func (r *Registry) Supports(typ models.ActivityType) bool {
	_, ok := r.integrations[typ]
	return ok
}

// Map validates body against the integration's schema and builds the activity fields.
func (r *Registry) Map(typ models.ActivityType, body []byte, now time.Time) (mapped, error) {
	in, ok := r.integrations[typ]
	if !ok {
		return mapped{}, ErrUnknownIntegration
	}
	p, err := decode(in.schema, body)
	if err != nil {
		return mapped{}, err
	}
	return in.toRow(p, now), nil
}

// Note validates a manual note body and returns its title and description.
func (r *Registry) Note(body []byte) (string, *string, error) {
	p, err := decode(r.note, body)
	if err != nil {
		return "", nil, err
	}
	return p.str("title"), p.optional("description"), nil
}

func decode(sch *jsonschema.Schema, body []byte) (payload, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, &ValidationError{Message: "Invalid JSON body"}
	}
	if err := sch.Validate(inst); err != nil {
		return nil, &ValidationError{Message: "Missing required fields"}
	}
	obj, ok := inst.(map[string]any)
	if !ok {
		return nil, &ValidationError{Message: "Missing required fields"}
	}
	return payload(obj), nil
}

// payload is a decoded JSON object. Numbers are json.Number.
type payload map[string]any

func (p payload) str(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (p payload) optional(key string) *string {
	if _, ok := p[key]; !ok {
		return nil
	}
	if p[key] == nil {
		return nil
	}
	s := p.str(key)
	return &s
}

// meta copies the listed keys that are present in the payload and stamps the
// receive time.
func (p payload) meta(now time.Time, keys ...string) map[string]any {
	m := make(map[string]any, len(keys)+1)
	for _, k := range keys {
		if v, ok := p[k]; ok {
			m[k] = v
		}
	}
	m["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	return m
}

func gmailActivity(p payload, now time.Time) mapped {
	return mapped{
		DealID:      p.str("dealId"),
		Title:       p.str("subject"),
		Description: p.optional("preview"),
		Metadata:    p.meta(now, "from", "threadId"),
	}
}

func twilioActivity(p payload, now time.Time) mapped {
	title := "SMS sent"
	if p.str("direction") == "inbound" {
		title = "SMS received"
	}
	body := p.str("body")
	return mapped{
		DealID:      p.str("dealId"),
		Title:       title,
		Description: &body,
		Metadata:    p.meta(now, "from", "direction", "sid"),
	}
}

func shopifyActivity(p payload, now time.Time) mapped {
	name := p.str("orderName")
	if name == "" {
		name = p.str("orderId")
	}
	desc := fmt.Sprintf("Order by %s - $%s", p.str("customer"), p.str("totalPrice"))
	return mapped{
		DealID:      p.str("dealId"),
		Title:       "Order " + name,
		Description: &desc,
		Metadata:    p.meta(now, "orderId", "orderName", "customer", "totalPrice", "fulfillmentStatus"),
	}
}
