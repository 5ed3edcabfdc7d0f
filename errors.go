/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// Validation failures are reported to the requesting client only; every
// other bad request (unknown identity, duplicate queue entry, missing
// action) is a silent no-op that mutates and broadcasts nothing.
var (
	ErrEmptyName   = errors.New("names must not be empty")
	ErrEmptyAction = errors.New("actions must not be empty")
)
