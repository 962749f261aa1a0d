package remote

import "github.com/RoseWrightdev/Remote-Control/internal/v1/types"

// Stable error code vocabulary. Clients select UX by code; the message is
// advisory.
const (
	CodeRoomRequired          = "room-required"
	CodeHostRequired          = "host-required"
	CodeHostNotFound          = "host-not-found"
	CodeHostOffline           = "host-offline"
	CodeHostIDInUse           = "host-id-in-use"
	CodeHostBusy              = "host-busy"
	CodeHostPending           = "host-pending"
	CodeControllerBusy        = "controller-busy"
	CodeControllerPending     = "controller-pending"
	CodeHostOwnerUnclaimed    = "host-owner-unclaimed"
	CodeHostClaimedByOther    = "host-claimed-by-other"
	CodeHostClaimAssigned     = "host-claim-assigned-other"
	CodeHostClaimMismatch     = "host-claim-owner-mismatch"
	CodeSelfHostRequest       = "self-host-request-blocked"
	CodeSelfHostMachine       = "self-host-machine-blocked"
	CodeRequestRejected       = "request-rejected"
	CodeRequestCancelled      = "request-cancelled"
	CodeRequestTimeout        = "request-timeout"
	CodeHostDisconnected      = "host-disconnected"
	CodeControllerDisconnect  = "controller-disconnected"
	CodeApproverDisconnected  = "approver-disconnected"
	CodeParticipantRequired   = "participant-required"
	CodeParticipantNotFound   = "participant-not-found"
	CodeParticipantInvalid    = "participant-invalid"
)

var defaultMessages = map[string]string{
	CodeRoomRequired:         "Join a room before using remote control.",
	CodeHostRequired:         "A host id is required.",
	CodeHostNotFound:         "No such host is registered.",
	CodeHostOffline:          "The host agent is offline.",
	CodeHostIDInUse:          "This host id is already registered by another agent.",
	CodeHostBusy:             "The host is already in a session.",
	CodeHostPending:          "The host already has a pending request.",
	CodeControllerBusy:       "You are already in a session.",
	CodeControllerPending:    "You already have a pending request.",
	CodeHostOwnerUnclaimed:   "Nobody in the room has claimed this host.",
	CodeHostClaimedByOther:   "Another participant has claimed this host.",
	CodeHostClaimAssigned:    "This host is assigned to another participant.",
	CodeHostClaimMismatch:    "The host agent is running on a different network.",
	CodeSelfHostRequest:      "You cannot request a session you would approve yourself.",
	CodeSelfHostMachine:      "Remote control of your own machine is blocked.",
	CodeRequestRejected:      "The request was rejected.",
	CodeRequestCancelled:     "The request was cancelled.",
	CodeRequestTimeout:       "The request timed out.",
	CodeHostDisconnected:     "The host agent disconnected.",
	CodeControllerDisconnect: "The controller disconnected.",
	CodeApproverDisconnected: "The approver disconnected.",
	CodeParticipantRequired:  "A target participant is required.",
	CodeParticipantNotFound:  "No such participant in the room.",
	CodeParticipantInvalid:   "Invalid target participant.",
}

func errorPayload(code, message string) types.ErrorPayload {
	if message == "" {
		message = defaultMessages[code]
	}
	return types.ErrorPayload{Code: code, Message: message}
}
