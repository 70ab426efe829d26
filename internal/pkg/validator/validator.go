// Package validator validates request structs through their `validate` tags.
// Usecases depend on the interface; the v10 implementation carries the custom
// rules and English translations.
package validator

// Validator validates annotated structs.
type Validator interface {
	Validate(data any) error
}
