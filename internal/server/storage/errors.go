package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrProjectNotFound indicates that no project has the requested slug
	ErrProjectNotFound = errors.New("project not found")

	// ErrVersionNotFound indicates that the project has no version with the requested slug
	ErrVersionNotFound = errors.New("project version not found")

	// ErrAlreadyExists indicates a slug or natural key collision
	ErrAlreadyExists = errors.New("already exists")

	// ErrLocaleNotFound indicates an unknown locale id
	ErrLocaleNotFound = errors.New("locale not found")

	// ErrDocumentNotFound indicates that the version has no such document
	ErrDocumentNotFound = errors.New("document not found")

	// ErrTextFlowNotFound indicates an unknown text flow id
	ErrTextFlowNotFound = errors.New("text flow not found")

	// ErrTransMemoryNotFound indicates an unknown translation memory or TM unit
	ErrTransMemoryNotFound = errors.New("translation memory not found")
)
