// Package repository implements the MySQL data access layer.  This file
// defines sentinel errors reused across repositories so higher layers
// can distinguish failure scenarios with errors.Is instead of inspecting
// driver-specific errors or SQL state.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist.  Handlers translate
// it into HTTP 404 — and deliberately also use it for resources the
// caller is not allowed to see, so a denial never confirms existence.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by UserRepo.Create when the email is
// already registered.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")
