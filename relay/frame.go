// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/wasteland/lib/event"
)

// Frame types.
const (
	FrameEvent  = "EVENT"
	FrameReq    = "REQ"
	FrameClose  = "CLOSE"
	FrameEOSE   = "EOSE"
	FrameOK     = "OK"
	FrameNotice = "NOTICE"
	FrameClosed = "CLOSED"
)

// Frame is a decoded NIP-01 frame in either direction. Which fields
// are set depends on Type:
//
//	EVENT (client)  Event
//	EVENT (relay)   SubscriptionID, Event
//	REQ             SubscriptionID, Filters
//	CLOSE, EOSE     SubscriptionID
//	OK              EventID, Accepted, Message
//	NOTICE          Message
//	CLOSED          SubscriptionID, Message
type Frame struct {
	Type           string
	SubscriptionID string
	Event          *event.Event
	Filters        []event.Filter
	EventID        string
	Accepted       bool
	Message        string
}

// EncodeEvent encodes a client publish: ["EVENT", e].
func EncodeEvent(e event.Event) ([]byte, error) {
	return encode(FrameEvent, e)
}

// EncodeReq encodes ["REQ", id, filters...].
func EncodeReq(subscriptionID string, filters []event.Filter) ([]byte, error) {
	elements := make([]any, 0, len(filters)+2)
	elements = append(elements, FrameReq, subscriptionID)
	for _, filter := range filters {
		elements = append(elements, filter)
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("relay: encoding REQ: %w", err)
	}
	return data, nil
}

// EncodeClose encodes ["CLOSE", id].
func EncodeClose(subscriptionID string) ([]byte, error) {
	return encode(FrameClose, subscriptionID)
}

// EncodeSubscriptionEvent encodes a relay delivery: ["EVENT", id, e].
func EncodeSubscriptionEvent(subscriptionID string, e event.Event) ([]byte, error) {
	return encode(FrameEvent, subscriptionID, e)
}

// EncodeEOSE encodes ["EOSE", id].
func EncodeEOSE(subscriptionID string) ([]byte, error) {
	return encode(FrameEOSE, subscriptionID)
}

// EncodeOK encodes ["OK", event id, accepted, message].
func EncodeOK(eventID string, accepted bool, message string) ([]byte, error) {
	return encode(FrameOK, eventID, accepted, message)
}

// EncodeNotice encodes ["NOTICE", message].
func EncodeNotice(message string) ([]byte, error) {
	return encode(FrameNotice, message)
}

// EncodeClosed encodes ["CLOSED", id, message].
func EncodeClosed(subscriptionID, message string) ([]byte, error) {
	return encode(FrameClosed, subscriptionID, message)
}

func encode(frameType string, elements ...any) ([]byte, error) {
	data, err := json.Marshal(append([]any{frameType}, elements...))
	if err != nil {
		return nil, fmt.Errorf("relay: encoding %s: %w", frameType, err)
	}
	return data, nil
}

// DecodeFrame parses one frame. Unknown frame types are an error.
func DecodeFrame(data []byte) (Frame, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return Frame{}, fmt.Errorf("relay: frame is not a JSON array: %w", err)
	}
	if len(elements) == 0 {
		return Frame{}, fmt.Errorf("relay: empty frame")
	}

	var frame Frame
	if err := json.Unmarshal(elements[0], &frame.Type); err != nil {
		return Frame{}, fmt.Errorf("relay: frame type: %w", err)
	}
	arguments := elements[1:]

	switch frame.Type {
	case FrameEvent:
		switch len(arguments) {
		case 1:
			frame.Event = new(event.Event)
			if err := json.Unmarshal(arguments[0], frame.Event); err != nil {
				return Frame{}, fmt.Errorf("relay: EVENT payload: %w", err)
			}
		case 2:
			if err := json.Unmarshal(arguments[0], &frame.SubscriptionID); err != nil {
				return Frame{}, fmt.Errorf("relay: EVENT subscription id: %w", err)
			}
			frame.Event = new(event.Event)
			if err := json.Unmarshal(arguments[1], frame.Event); err != nil {
				return Frame{}, fmt.Errorf("relay: EVENT payload: %w", err)
			}
		default:
			return Frame{}, fmt.Errorf("relay: EVENT frame has %d arguments", len(arguments))
		}

	case FrameReq:
		if len(arguments) < 1 {
			return Frame{}, fmt.Errorf("relay: REQ frame has no subscription id")
		}
		if err := json.Unmarshal(arguments[0], &frame.SubscriptionID); err != nil {
			return Frame{}, fmt.Errorf("relay: REQ subscription id: %w", err)
		}
		for i, raw := range arguments[1:] {
			var filter event.Filter
			if err := json.Unmarshal(raw, &filter); err != nil {
				return Frame{}, fmt.Errorf("relay: REQ filter %d: %w", i, err)
			}
			frame.Filters = append(frame.Filters, filter)
		}

	case FrameClose, FrameEOSE:
		if len(arguments) < 1 {
			return Frame{}, fmt.Errorf("relay: %s frame has no subscription id", frame.Type)
		}
		if err := json.Unmarshal(arguments[0], &frame.SubscriptionID); err != nil {
			return Frame{}, fmt.Errorf("relay: %s subscription id: %w", frame.Type, err)
		}

	case FrameOK:
		if len(arguments) < 2 {
			return Frame{}, fmt.Errorf("relay: OK frame has %d arguments", len(arguments))
		}
		if err := json.Unmarshal(arguments[0], &frame.EventID); err != nil {
			return Frame{}, fmt.Errorf("relay: OK event id: %w", err)
		}
		if err := json.Unmarshal(arguments[1], &frame.Accepted); err != nil {
			return Frame{}, fmt.Errorf("relay: OK accepted flag: %w", err)
		}
		if len(arguments) > 2 {
			if err := json.Unmarshal(arguments[2], &frame.Message); err != nil {
				return Frame{}, fmt.Errorf("relay: OK message: %w", err)
			}
		}

	case FrameNotice:
		if len(arguments) < 1 {
			return Frame{}, fmt.Errorf("relay: NOTICE frame has no message")
		}
		if err := json.Unmarshal(arguments[0], &frame.Message); err != nil {
			return Frame{}, fmt.Errorf("relay: NOTICE message: %w", err)
		}

	case FrameClosed:
		if len(arguments) < 1 {
			return Frame{}, fmt.Errorf("relay: CLOSED frame has no subscription id")
		}
		if err := json.Unmarshal(arguments[0], &frame.SubscriptionID); err != nil {
			return Frame{}, fmt.Errorf("relay: CLOSED subscription id: %w", err)
		}
		if len(arguments) > 1 {
			if err := json.Unmarshal(arguments[1], &frame.Message); err != nil {
				return Frame{}, fmt.Errorf("relay: CLOSED message: %w", err)
			}
		}

	default:
		return Frame{}, fmt.Errorf("relay: unknown frame type %q", frame.Type)
	}
	return frame, nil
}
