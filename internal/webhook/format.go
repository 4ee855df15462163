package webhook

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/event"
)

// formatPayload returns the request body and content-type for a webhook delivery.
func formatPayload(w *Webhook, e event.Event) ([]byte, string, error) {
	var payload any
	switch strings.ToLower(w.Type) {
	case TypeDiscord:
		payload = map[string]any{
			"embeds": []map[string]any{{
				"title":       "muindb: " + string(e.Type),
				"description": describe(e),
				"color":       3447003,
				"timestamp":   e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			}},
		}
	case TypeSlack:
		payload = map[string]any{"text": fmt.Sprintf("*muindb: %s*\n%s", e.Type, describe(e))}
	case TypeGotify:
		payload = map[string]any{"title": "muindb: " + string(e.Type), "message": describe(e)}
	default:
		payload = map[string]any{
			"event":     string(e.Type),
			"run_id":    e.RunID,
			"timestamp": e.Timestamp,
			"data":      e.Data,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}

// describe renders an event as one human-readable line.
func describe(e event.Event) string {
	d := e.Data
	switch e.Type {
	case event.BatchStarted:
		return fmt.Sprintf("batch %s started: %v subjects", e.RunID, d["total"])
	case event.BatchCompleted:
		state := "completed"
		if b, _ := d["interrupted"].(bool); b {
			state = "interrupted"
		}
		return fmt.Sprintf("batch %s %s: %v/%v processed, %v succeeded, %v failed, %v skipped",
			e.RunID, state, d["processed"], d["total"], d["succeeded"], d["failed"], d["skipped"])
	case event.CheckpointWritten:
		return fmt.Sprintf("batch %s checkpoint: %v/%v", e.RunID, d["processed"], d["total"])
	case event.SubjectClassified:
		return fmt.Sprintf("%v classified as %v", d["subject"], d["genre"])
	case event.SubjectSkipped:
		return fmt.Sprintf("%v already classified as %v", d["subject"], d["genre"])
	case event.SubjectFailed:
		return fmt.Sprintf("%v failed: %v", d["subject"], d["error"])
	}
	if d == nil {
		return string(e.Type)
	}
	b, _ := json.Marshal(d)
	return string(b)
}
