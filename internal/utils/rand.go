package utils

import (
	"math/rand"
)

const pidAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandString returns a short random identifier used as a thread's public id.
func RandString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = pidAlphabet[rand.Intn(len(pidAlphabet))]
	}
	return string(b)
}
