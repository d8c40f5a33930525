// Package xapi records learning statements to an xAPI learning record store.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/config"
)

const version = "1.0.3"

// Verb is an xAPI verb IRI.
type Verb string

const (
	VerbPosted Verb = "https://w3id.org/xapi/dod-isd/verbs/posted"
	VerbShared Verb = "https://w3id.org/xapi/dod-isd/verbs/shared"
	VerbRead   Verb = "https://w3id.org/xapi/dod-isd/verbs/read"
)

var verbNames = map[Verb]string{
	VerbPosted: "posted",
	VerbShared: "shared",
	VerbRead:   "read",
}

// Actor identifies who did something.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Activity is the object of a statement, or a context parent.
type Activity struct {
	ID          uuid.UUID
	Type        string // e.g. "article", "exhibit"
	Name        string
	Description string
}

// Event is everything needed to build one statement.
type Event struct {
	Verb   Verb
	Actor  Actor
	Object Activity
	Parent *Activity
	TeamID *uuid.UUID
}

// Client posts statements to the LRS statements resource.
type Client struct {
	cfg    config.XAPIConfig
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewClient creates an LRS client. It is a no-op until cfg.Endpoint is set.
func NewClient(cfg config.XAPIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

// IsConfigured reports whether an LRS endpoint is set.
func (c *Client) IsConfigured() bool {
	return c != nil && c.cfg.Endpoint != ""
}

// RecordEvent posts one statement and reports whether the LRS accepted it.
// Failures are logged, never returned; callers must not fail their own operation on them.
func (c *Client) RecordEvent(ctx context.Context, ev Event) bool {
	if !c.IsConfigured() {
		return false
	}
	if err := c.post(ctx, c.Statement(ev)); err != nil {
		c.logger.Warn("xapi statement failed",
			zap.String("verb", verbNames[ev.Verb]),
			zap.String("object_id", ev.Object.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *Client) activityID(a Activity) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.ActivityBase, "/"), a.Type, a.ID)
}

func (c *Client) activity(a Activity) map[string]interface{} {
	def := map[string]interface{}{
		"name": map[string]string{"en-US": a.Name},
		"type": "http://id.tincanapi.com/activitytype/" + a.Type,
	}
	if a.Description != "" {
		def["description"] = map[string]string{"en-US": a.Description}
	}
	return map[string]interface{}{
		"objectType": "Activity",
		"id":         c.activityID(a),
		"definition": def,
	}
}

// Statement renders ev as an xAPI statement document.
func (c *Client) Statement(ev Event) map[string]interface{} {
	actor := map[string]interface{}{
		"objectType": "Agent",
		"name":       ev.Actor.Name,
		"account": map[string]string{
			"homePage": strings.TrimRight(c.cfg.ActivityBase, "/"),
			"name":     ev.Actor.ID.String(),
		},
	}
	sctx := map[string]interface{}{"platform": c.cfg.Platform}
	if ev.Parent != nil {
		sctx["contextActivities"] = map[string]interface{}{
			"parent": []interface{}{c.activity(*ev.Parent)},
		}
	}
	if ev.TeamID != nil {
		sctx["extensions"] = map[string]string{
			strings.TrimRight(c.cfg.ActivityBase, "/") + "/extensions/team": ev.TeamID.String(),
		}
	}
	return map[string]interface{}{
		"id":    uuid.New().String(),
		"actor": actor,
		"verb": map[string]interface{}{
			"id":      string(ev.Verb),
			"display": map[string]string{"en-US": verbNames[ev.Verb]},
		},
		"object":    c.activity(ev.Object),
		"context":   sctx,
		"timestamp": c.now().UTC().Format(time.RFC3339Nano),
	}
}

func (c *Client) post(ctx context.Context, stmt map[string]interface{}) error {
	body, err := json.Marshal(stmt)
	if err != nil {
		return err
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/statements"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Experience-API-Version", version)
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lrs status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
