package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FlexString is a string field as delivered by the vendor webhook. The vendor
// is inconsistent about shapes: the same field may arrive as a bare string,
// as a {"value": ...} wrapper, as a number, or not at all. Decoding never
// fails; anything unrecognizable is treated as absent.
type FlexString struct {
	Value   string
	Present bool
}

func (f FlexString) String() string { return f.Value }

func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString{Value: s, Present: true}
		return nil
	}

	// {"value": ...} wrapper, possibly nested.
	if data[0] == '{' {
		var wrapper struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Value != nil {
			var inner FlexString
			if err := inner.UnmarshalJSON(wrapper.Value); err == nil {
				*f = inner
			}
		}
		return nil
	}

	// Coerce scalars (numbers, booleans) to their string form.
	var v interface{}
	if err := json.Unmarshal(data, &v); err == nil && v != nil {
		switch v.(type) {
		case float64, bool:
			*f = FlexString{Value: fmt.Sprint(v), Present: true}
		}
	}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// WebhookAnalysis is the vendor's post-call analysis block.
type WebhookAnalysis struct {
	TranscriptSummary     FlexString            `json:"transcript_summary"`
	DataCollectionResults map[string]FlexString `json:"data_collection_results"`
}

// Result returns the named data-collection field, unwrapped.
func (a WebhookAnalysis) Result(key string) FlexString {
	return a.DataCollectionResults[key]
}

// WebhookTranscriptEntry is one vendor transcript turn.
type WebhookTranscriptEntry struct {
	Role    FlexString `json:"role"`
	Message FlexString `json:"message"`
}

// WebhookMetadata carries call statistics.
type WebhookMetadata struct {
	CallDurationSecs float64 `json:"call_duration_secs"`
	Cost             float64 `json:"cost"`
}

// WebhookClientData is the passthrough of the variables supplied at
// call-initiation time.
type WebhookClientData struct {
	DynamicVariables map[string]FlexString `json:"dynamic_variables"`
}

// WebhookData is the nested payload body.
type WebhookData struct {
	ConversationID FlexString               `json:"conversation_id"`
	Analysis       WebhookAnalysis          `json:"analysis"`
	Transcript     []WebhookTranscriptEntry `json:"transcript"`
	Metadata       WebhookMetadata          `json:"metadata"`
	ClientData     WebhookClientData        `json:"conversation_initiation_client_data"`
}

// CallCompletedWebhook is one inbound delivery from the voice-AI vendor.
type CallCompletedWebhook struct {
	ConversationID FlexString  `json:"conversation_id"`
	Data           WebhookData `json:"data"`
}

// ResolvedConversationID returns the vendor conversation id, whichever level
// it was delivered at.
func (w CallCompletedWebhook) ResolvedConversationID() string {
	if w.ConversationID.Present {
		return w.ConversationID.Value
	}
	return w.Data.ConversationID.Value
}

// DynamicReservationID returns the application-supplied correlation id passed
// through the vendor's dynamic variables, or "" when absent.
func (w CallCompletedWebhook) DynamicReservationID() string {
	return w.Data.ClientData.DynamicVariables["reservation_id"].Value
}

// ParseCallCompletedWebhook decodes a delivery tolerantly: missing nested
// fields default to empty containers and field-level type mismatches are
// ignored. Only a body that is not JSON at all yields an error, and even then
// a usable zero payload is returned so the delivery can still be acknowledged.
func ParseCallCompletedWebhook(body []byte) (CallCompletedWebhook, error) {
	var payload CallCompletedWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Partial decode; everything before and after the offending
			// field is populated.
			return payload, nil
		}
		return CallCompletedWebhook{}, fmt.Errorf("ParseCallCompletedWebhook: %w", err)
	}
	return payload, nil
}
