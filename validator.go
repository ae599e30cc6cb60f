package main

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator applies the two mandatory cross-cutting checks from §4.2: the
// version gate, and per-command struct validation via
// github.com/go-playground/validator. Commands with no registered payload
// struct pass through unchecked (forward compatible) — the version gate
// still applies to them.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// CheckVersion enforces the version gate (§4.2).
func (val *Validator) CheckVersion(env Envelope) error {
	if env.Headers.Version != Version {
		return errUpgradeRequired("unsupported protocol version " + env.Headers.Version)
	}
	return nil
}

// Decode unmarshals env.Payload into the command's registered struct and
// validates it. If no struct is registered for env.Command, it returns nil
// for the payload and no error (pass-through). On malformed JSON or a
// failed validation, it returns a BAD_REQUEST/PARAM_MISSING protoError
// carrying the validator's message.
func (val *Validator) Decode(env Envelope) (any, error) {
	factory, ok := payloadFactories[env.Command]
	if !ok {
		return nil, nil
	}
	payload := factory()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return nil, errBadRequest("malformed payload: " + err.Error())
		}
	}
	if err := val.v.Struct(payload); err != nil {
		return nil, errParamMissing(describeValidationError(err))
	}
	return payload, nil
}

func describeValidationError(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
