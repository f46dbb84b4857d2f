// Package validator checks structs against their `validate:"..."` tags and
// reports failures per field with English messages.
package validator

type Validator interface {
	Validate(data any) error
}
