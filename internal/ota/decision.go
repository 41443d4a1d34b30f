package ota

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionKind is the outcome of comparing a manifest to the installed version.
type DecisionKind int

const (
	NoUpdate DecisionKind = iota
	OptionalUpdate
	ForcedUpdate
)

func (k DecisionKind) String() string {
	switch k {
	case OptionalUpdate:
		return "optional"
	case ForcedUpdate:
		return "forced"
	default:
		return "none"
	}
}

type Decision struct {
	Kind     DecisionKind
	Manifest Manifest
	// Reason explains a NoUpdate that was not a plain version comparison.
	Reason string
}

// Decide compares the manifest against the installed version.
// A manifest that signals an update but carries no download URL is NoUpdate.
func Decide(m Manifest, currentVersion int) Decision {
	if m.Version <= currentVersion {
		return Decision{Kind: NoUpdate, Manifest: m}
	}
	if m.URL == "" {
		return Decision{
			Kind:     NoUpdate,
			Manifest: m,
			Reason:   fmt.Sprintf("manifest version %d has no download url", m.Version),
		}
	}
	if m.ForceUpdate {
		return Decision{Kind: ForcedUpdate, Manifest: m}
	}
	return Decision{Kind: OptionalUpdate, Manifest: m}
}

// OutcomeStatus mirrors the report status strings.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Status OutcomeStatus
	// ErrorDetail is the JSON-serialized apply error; empty on success.
	ErrorDetail string
	Device      *DeviceInfo
	Err         error
}

func SuccessOutcome() Outcome {
	return Outcome{Status: OutcomeSuccess}
}

func FailureOutcome(err error, device DeviceInfo) Outcome {
	return Outcome{
		Status:      OutcomeFailure,
		ErrorDetail: SerializeError(err),
		Device:      &device,
		Err:         err,
	}
}

type serializedError struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Causes  []string `json:"causes,omitempty"`
}

// SerializeError renders err and its unwrap chain as JSON.
func SerializeError(err error) string {
	if err == nil {
		return ""
	}
	se := serializedError{Type: fmt.Sprintf("%T", err), Message: err.Error()}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		se.Causes = append(se.Causes, fmt.Sprintf("%T: %v", cause, cause))
	}
	data, mErr := json.Marshal(se)
	if mErr != nil {
		return fmt.Sprintf("%q", err.Error())
	}
	return string(data)
}
