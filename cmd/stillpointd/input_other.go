//go:build !linux

package main

import (
	"context"
	"errors"
	"os"
)

func readInputEvents(_ context.Context, _ []*os.File, _ chan<- inputEvent, readErr chan<- error) {
	readErr <- errors.New("hardware buttons are only supported on linux")
}
