package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	InviteCodeLength   = 8
	inviteCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateInviteCode returns a short URL-safe code drawn uniformly from [a-z0-9].
func GenerateInviteCode() (string, error) {
	return generateCode(InviteCodeLength)
}

func generateCode(length int) (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		buf[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// JoinPath is the client route that opens an invite.
func JoinPath(code string) string {
	return "/challenges/join/" + code
}
