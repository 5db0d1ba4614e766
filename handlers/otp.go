package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruteri/tee-secure-signer/interfaces"
)

// PlaintextOTP is an OTPDecrypter for development setups where the one-time
// code is delivered unencrypted.
type PlaintextOTP struct{}

var _ interfaces.OTPDecrypter = PlaintextOTP{}

func (PlaintextOTP) Decrypt(_ context.Context, digits []int) ([]int, error) {
	return append([]int(nil), digits...), nil
}

func digitsToCode(digits []int) (string, error) {
	var sb strings.Builder
	for _, d := range digits {
		if d < 0 || d > 9 {
			return "", fmt.Errorf("invalid otp digit %d", d)
		}
		sb.WriteByte(byte('0' + d))
	}
	return sb.String(), nil
}
