package domain

// UserError carries a message that is safe to show to the shopper as is.
type UserError struct {
	Message string
	Err     error
}

// NewUserError wraps cause with a user-safe message.
func NewUserError(message string, cause error) *UserError {
	return &UserError{Message: message, Err: cause}
}

func (e *UserError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
