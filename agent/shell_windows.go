//go:build windows

package main

import (
	"context"
	"errors"
)

func runShell(context.Context, []string) (Output, error) {
	return Output{}, errors.New("shell is not supported on windows")
}
