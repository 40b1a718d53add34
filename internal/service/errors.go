package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrRemoteUnavailable is returned when the backing store cannot serve a
	// request. It is not retried here; retry is a caller concern.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrPartialBatchFailure is matched by *PartialBatchFailure
	ErrPartialBatchFailure = errors.New("partial batch failure")
)

// PartialBatchFailure reports a batch where some independent writes failed.
// Writes that succeeded are not rolled back.
type PartialBatchFailure struct {
	Attempted int
	Failed    []string
	First     error
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d of %d writes failed: %v", len(e.Failed), e.Attempted, e.First)
}

func (e *PartialBatchFailure) Is(target error) bool {
	return target == ErrPartialBatchFailure
}

func (e *PartialBatchFailure) Unwrap() error {
	return e.First
}

func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}
