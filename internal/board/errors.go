package board

import "fmt"

// LoadError reports a failed stage or deal fetch. The previous projection is kept.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load pipeline: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PersistError reports a stage move that the store rejected. By the time it is
// returned the projection has already been rebuilt from the store.
type PersistError struct {
	DealID  string
	StageID string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("move deal %s to stage %s: %v", e.DealID, e.StageID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
