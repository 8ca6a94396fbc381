package common

import (
	"errors"
	"fmt"
)

// Business logic errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnpublished   = errors.New("unpublished")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("expired token")
	ErrOngoingReview = errors.New("ongoing review")
	ErrNotPending    = errors.New("curation is not pending")
)

// NotFoundError is returned when an entity does not exist locally nor remotely
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) Data() map[string]any {
	return map[string]any{"id": e.ID, "kind": e.Kind}
}

// UnpublishedError is returned when an entity exists locally but is not published
type UnpublishedError struct {
	Kind string
	ID   string
}

func (e *UnpublishedError) Error() string {
	return fmt.Sprintf("%s %s is not published", e.Kind, e.ID)
}

func (e *UnpublishedError) Unwrap() error { return ErrUnpublished }

func (e *UnpublishedError) Data() map[string]any {
	return map[string]any{"id": e.ID, "kind": e.Kind}
}

// UnauthorizedError is returned when the caller fails an access check
type UnauthorizedError struct {
	Address string
	Kind    string
	ID      string
	Reason  string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("unauthorized user %s for %s %s", e.Address, e.Kind, e.ID)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

func (e *UnauthorizedError) Data() map[string]any {
	data := map[string]any{"eth_address": e.Address}
	if e.ID != "" {
		data["id"] = e.ID
		data["kind"] = e.Kind
	}
	return data
}

// ConflictError wraps ErrOngoingReview, ErrNotPending or ErrConflict
type ConflictError struct {
	Kind string
	ID   string
	Err  error
}

func (e *ConflictError) Error() string {
	switch {
	case errors.Is(e.Err, ErrOngoingReview):
		return fmt.Sprintf("there is already an ongoing review for %s %s", e.Kind, e.ID)
	case errors.Is(e.Err, ErrNotPending):
		return fmt.Sprintf("the latest curation of %s %s is not pending", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Data() map[string]any {
	return map[string]any{"id": e.ID, "kind": e.Kind}
}

// ValidationError is a malformed payload or a rule violation on the request shape
type ValidationError struct {
	ID      string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func (e *ValidationError) Data() map[string]any {
	if e.ID == "" {
		return nil
	}
	return map[string]any{"id": e.ID}
}
