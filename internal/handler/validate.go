package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// MessageInvalidEmail is shown for a missing or malformed email.
const MessageInvalidEmail = "Must be a valid email."

// validate is shared by all handlers; it caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validationMessages maps field validation failures to user-facing messages.
func validationMessages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": "Invalid request"}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Email":
			fields["email"] = MessageInvalidEmail
		case "CeremonyID":
			fields["ceremonyId"] = "Ceremony is required."
		case "Credential":
			fields["credential"] = "Credential is required."
		default:
			fields[fe.Field()] = "Invalid value."
		}
	}
	return fields
}
