package testutil

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// ContainerSuffix returns a short lowercase tag for naming throwaway
// test containers, so a stale container left by an aborted run never
// collides with a fresh one.
func ContainerSuffix() string {
	return strings.ToLower(gofakeit.LetterN(6))
}
