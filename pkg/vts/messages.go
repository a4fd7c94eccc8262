// Package vts implements a session-authenticated client for the VTube
// Studio public API: a JSON message protocol over a WebSocket, gated by a
// token handshake before any parameter traffic is accepted.
package vts

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// API identity constants for every envelope.
const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"
)

// Message types exchanged with the renderer.
const (
	TypeAuthenticationRequest       = "AuthenticationRequest"
	TypeAuthenticationToken         = "AuthenticationToken"
	TypeAuthenticationResponse      = "AuthenticationResponse"
	TypeParameterUpdateRequest      = "ParameterUpdateRequest"
	TypeHotkeyTriggerRequest        = "HotkeyTriggerRequest"
	TypeGetCurrentModelParameters   = "GetCurrentModelParametersRequest"
	TypeCurrentModelParameters      = "CurrentModelParameters"
	TypeAPIError                    = "APIError"
)

// Envelope is the wrapper shared by every request and response.
type Envelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// newRequest builds an outbound envelope with a fresh request ID.
func newRequest(messageType string, data any) (*Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", messageType, err)
		}
	}
	return &Envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   uuid.NewString(),
		MessageType: messageType,
		Data:        raw,
	}, nil
}

// ParseData unmarshals the envelope data into the provided struct.
func (e *Envelope) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// AuthenticationRequestData carries the plugin identity, plus the session
// token on the second authentication round.
type AuthenticationRequestData struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	PluginIcon          string `json:"pluginIcon,omitempty"`
	AuthenticationToken string `json:"authenticationToken,omitempty"`
}

// AuthenticationTokenData is the renderer's token issuance.
type AuthenticationTokenData struct {
	AuthenticationToken string `json:"authenticationToken"`
}

// AuthenticationResponseData acknowledges (or rejects) the token round.
type AuthenticationResponseData struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason,omitempty"`
	SessionID     string `json:"sessionID,omitempty"`
}

// ParameterValue is one named parameter in an update batch.
type ParameterValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// ParameterUpdateData batches the parameters that changed this frame.
type ParameterUpdateData struct {
	ParameterValues []ParameterValue `json:"parameterValues"`
}

// HotkeyTriggerData names the hotkey to fire.
type HotkeyTriggerData struct {
	HotkeyID string `json:"hotkeyID"`
}

// APIErrorData is a server-reported protocol error.
type APIErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}
