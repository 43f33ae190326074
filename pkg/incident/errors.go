package incident

import "fmt"

// ValidationError is a user-correctable problem with a submission. It is
// raised before the store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid incident: %s %s", e.Field, e.Reason)
}

// StoreError is a persistence failure. Scan results are never affected by
// it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("incident store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// checkRecord is the guard every store applies on insert.
func checkRecord(r Record) error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if r.Subject == "" {
		return &ValidationError{Field: "subject", Reason: "is required"}
	}
	if !r.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("%q is not on the severity ladder", r.Severity)}
	}
	return nil
}
