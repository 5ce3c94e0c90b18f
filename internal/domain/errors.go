package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConfig      = errors.New("configuration error")
	ErrFetch       = errors.New("fetch failed")
	ErrParse       = errors.New("parse failed")
	ErrAlreadyUsed = errors.New("reactivation token already used")
	ErrExpired     = errors.New("reactivation token expired")
	ErrDispatch    = errors.New("notification dispatch failed")
)

// ExpiredError is returned when a reactivation token is redeemed after its
// validity window. It matches ErrExpired.
type ExpiredError struct {
	ValidTo time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s on %s", ErrExpired, e.ValidTo.UTC().Format("2006-01-02 15:04:05Z"))
}

func (e *ExpiredError) Is(target error) bool {
	return target == ErrExpired
}
