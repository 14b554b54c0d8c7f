package utils

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// AttendanceCodeLength is the length of generated per-event codes. Codes are
// scoped to one event, so collisions across events are harmless and are not
// checked.
const AttendanceCodeLength = 8

func GenerateAttendanceCode() (string, error) {
	b := make([]byte, AttendanceCodeLength)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
