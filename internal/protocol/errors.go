package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Generation request layer.
	ErrInvalidDimension = "E_INVALID_DIMENSION"
	ErrInvalidLevels    = "E_INVALID_LEVELS"
	ErrBusy             = "E_BUSY"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrInvalidDimension: {},
	ErrInvalidLevels:    {},
	ErrBusy:             {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
