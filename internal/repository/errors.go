package repository

import "errors"

var (
	// ErrNotFound registro no encontrado
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate registro duplicado
	ErrDuplicate = errors.New("duplicate record")
)
