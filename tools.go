//go:build tools
// +build tools

// Package tools pins mockgen so `go generate ./...` works from a fresh checkout.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
