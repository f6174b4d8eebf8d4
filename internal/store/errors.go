package store

import "fmt"

// StoreNotFoundError reports that the store file does not exist. Maintenance
// commands treat this as a no-op rather than a failure.
type StoreNotFoundError struct {
	Path string
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("session store not found: %s", e.Path)
}

// MalformedStoreError reports that the store payload could not be decoded:
// either it is not valid JSON or its top-level shape is wrong.
type MalformedStoreError struct {
	Reason string
	Err    error
}

func (e *MalformedStoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed session store: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed session store: %s", e.Reason)
}

func (e *MalformedStoreError) Unwrap() error {
	return e.Err
}
