// Package scraper is the request boundary: it maps named operations onto the
// extraction engine and turns every outcome into a plain response value.
package scraper

import (
	"fmt"

	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
)

// Operation is one of the fixed set of requests the boundary answers.
type Operation int

const (
	OpUnknown Operation = iota
	OpGetMeetingInfo
	OpGetParticipants
	OpExtractTranscript
	OpScrollAndExtract
	OpExtractCells
)

var operationNames = map[Operation]string{
	OpGetMeetingInfo:    "getMeetingInfo",
	OpGetParticipants:   "getParticipants",
	OpExtractTranscript: "extractTranscript",
	OpScrollAndExtract:  "scrollAndExtract",
	OpExtractCells:      "extractCells",
}

// Operations lists every known operation in declaration order.
func Operations() []Operation {
	return []Operation{
		OpGetMeetingInfo,
		OpGetParticipants,
		OpExtractTranscript,
		OpScrollAndExtract,
		OpExtractCells,
	}
}

// String returns the wire name of the operation.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOperation maps a wire name to its Operation.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("operation %q: %w", name, rcerrors.ErrUnknownOperation)
}

// IsTranscript reports whether the operation returns transcript entries.
func (o Operation) IsTranscript() bool {
	return o == OpExtractTranscript || o == OpScrollAndExtract || o == OpExtractCells
}
