package wallet

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrEmptyInput       = errors.New("address, signature and message are required")
	ErrSignatureInvalid = errors.New("signature does not match address and message")
)

// Verify checks a detached Ed25519 signature produced by a Solana wallet.
// The address is the base58 public key and the signature is base58 encoded
// (64 bytes). Decoding problems are returned as errors so callers can log
// them, but all of them mean the same thing to the caller: not verified.
func Verify(address, signature, message string) error {
	if address == "" || signature == "" || message == "" {
		return ErrEmptyInput
	}

	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	if !sig.Verify(pubkey, []byte(message)) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifySignature reports whether signature is a valid signature of message by address.
func VerifySignature(address, signature, message string) bool {
	return Verify(address, signature, message) == nil
}

// ValidAddress reports whether s decodes to a 32-byte public key.
func ValidAddress(s string) bool {
	if s == "" {
		return false
	}
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// ValidTxSignature reports whether s decodes to a 64-byte transaction signature.
func ValidTxSignature(s string) bool {
	if s == "" {
		return false
	}
	_, err := solana.SignatureFromBase58(s)
	return err == nil
}
