package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"example.com/gymcore/internal/domain"
	"example.com/gymcore/internal/events"
)

// Refresher recomputes a member's profile.
type Refresher interface {
	RefreshProfile(ctx context.Context, tenantID, userID string) (*domain.ActivityProfile, error)
}

// RefreshHandler refreshes the profile of the member named in each activity event.
type RefreshHandler struct {
	refresher Refresher
	schemas   map[string]*jsonschema.Schema
	logger    *log.Logger
}

// NewRefreshHandler compiles the activity payload schemas and returns a handler.
func NewRefreshHandler(refresher Refresher, logger *log.Logger) (*RefreshHandler, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[refresh] ", log.LstdFlags)
	}
	h := &RefreshHandler{
		refresher: refresher,
		schemas:   make(map[string]*jsonschema.Schema),
		logger:    logger,
	}
	for _, eventType := range []string{events.TypeWorkoutCompleted, events.TypeMealLogged, events.TypeCheckInRecorded} {
		raw, _ := events.SchemaFor(eventType)
		compiled, err := compileSchema(eventType, raw)
		if err != nil {
			return nil, err
		}
		h.schemas[eventType] = compiled
	}
	return h, nil
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	schemaURL := fmt.Sprintf("https://gymcore.schemas.local/events/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema load failed for %s: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed for %s: %w", name, err)
	}
	return compiled, nil
}

// Handle validates the payload and refreshes the member's profile. Malformed payloads and
// tenant mismatches are permanent failures; refresh failures are left for redelivery.
func (h *RefreshHandler) Handle(ctx context.Context, msg Message) error {
	schema, ok := h.schemas[msg.EventType]
	if !ok {
		recordSkipped(msg.EventType)
		return nil
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(msg.Payload))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", ErrPermanent, err)
	}

	var event events.ActivityRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: decode activity: %v", ErrPermanent, err)
	}
	if msg.TenantID != "" && msg.TenantID != event.TenantID {
		return fmt.Errorf("%w: tenant header %q does not match payload tenant %q", ErrPermanent, msg.TenantID, event.TenantID)
	}

	profile, err := h.refresher.RefreshProfile(ctx, event.TenantID, event.UserID)
	if err != nil {
		return err
	}
	h.logger.Printf("profile refreshed (tenant=%s, user=%s, level=%d, points=%d)", profile.TenantID, profile.UserID, profile.Level, profile.TotalPoints)
	return nil
}
