package domain

import "errors"

var (
	ErrRiderNotFound = errors.New("rider not found")
	ErrRiderBlocked  = errors.New("rider blocked")
	ErrRiderExists   = errors.New("rider already exists")
	ErrBusNotFound   = errors.New("bus not found")
	ErrBusInactive   = errors.New("bus inactive")
)
