package oddsproto

// Codes carried in AckMsg.Code.
const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Control layer.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrUnknownOp       = "E_UNKNOWN_OP"
	ErrUnknownLocation = "E_UNKNOWN_LOCATION"
	ErrNoPermission    = "E_NO_PERMISSION"
	ErrBusy            = "E_BUSY"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownOp:       {},
	ErrUnknownLocation: {},
	ErrNoPermission:    {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
