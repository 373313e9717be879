// Package identity resolves the opaque user identifier from the init payload
// handed over by the hosting environment.
package identity

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/types"
)

// initPayload mirrors the shape of the host init document. Only the user
// descriptor is of interest; everything else is ignored.
type initPayload struct {
	User *userDescriptor `json:"user"`
}

type userDescriptor struct {
	ID json.RawMessage `json:"id"`
}

// Resolver extracts a stable identity from a host-provided init payload.
// Resolution happens once; the result is immutable for the session.
type Resolver struct {
	payload []byte
	logger  zerolog.Logger
}

// NewResolver wraps the raw init payload. A nil or empty payload is valid
// and resolves to the guest identity.
func NewResolver(payload []byte, logger zerolog.Logger) *Resolver {
	return &Resolver{payload: payload, logger: logger}
}

// Resolve returns the user identifier carried by the init payload, or the
// guest identity when the payload is absent or malformed. Absence is a
// normal outcome, not a failure: Resolve never returns an error.
func (r *Resolver) Resolve() types.UserID {
	id := r.extract()
	if id.Guest() {
		r.logger.Info().Msg("no user descriptor in init payload, running in guest mode")
		return id
	}
	r.logger.Info().Str("user_id", string(id)).Msg("resolved user identity")
	return id
}

func (r *Resolver) extract() types.UserID {
	if len(r.payload) == 0 {
		return ""
	}

	var payload initPayload
	if err := json.Unmarshal(r.payload, &payload); err != nil {
		r.logger.Warn().Err(err).Msg("malformed init payload, falling back to guest")
		return ""
	}
	if payload.User == nil || len(payload.User.ID) == 0 {
		return ""
	}

	// The host may serialize the identifier as a string or a number.
	var asString string
	if err := json.Unmarshal(payload.User.ID, &asString); err == nil {
		return types.UserID(asString)
	}
	var asNumber int64
	if err := json.Unmarshal(payload.User.ID, &asNumber); err == nil {
		return types.UserID(strconv.FormatInt(asNumber, 10))
	}

	r.logger.Warn().Str("raw", string(payload.User.ID)).Msg("unrecognized user id shape, falling back to guest")
	return ""
}
