package dto

// Validatable is implemented by every request type. The server's Wrap
// helpers require it so requests are checked before reaching handlers.
type Validatable interface {
	Validate() error
}
