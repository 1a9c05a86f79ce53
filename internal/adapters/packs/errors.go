package packs

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrPackNotFound = errors.New("pack not found")
	ErrNoPacksDir   = errors.New("packs directory not configured")
)
