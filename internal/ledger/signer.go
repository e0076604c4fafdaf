package ledger

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gowebpki/jcs"
	"golang.org/x/term"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// ErrSignRejected is returned by a Signer when the user declines.
var ErrSignRejected = errors.New("signing rejected")

// SignedCall is a descriptor plus the sender's signature over its
// canonical encoding.
type SignedCall struct {
	Payload   *txbuild.CallDescriptor `json:"payload"`
	PublicKey string                  `json:"public_key"`
	Signature string                  `json:"signature"`
}

// Signer authorizes a call descriptor.
type Signer interface {
	Sign(ctx context.Context, d *txbuild.CallDescriptor) (*SignedCall, error)
}

// CanonicalPayload returns the bytes a signature covers.
func CanonicalPayload(d *txbuild.CallDescriptor) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return jcs.Transform(data)
}

// KeySigner signs with a local ed25519 key.
type KeySigner struct {
	key ed25519.PrivateKey
}

// NewKeySigner parses a hex-encoded 32-byte seed or 64-byte private key.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("signer key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return &KeySigner{key: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		return &KeySigner{key: ed25519.PrivateKey(raw)}, nil
	}
	return nil, fmt.Errorf("signer key: want %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
}

// PublicKey returns the hex-encoded public key.
func (s *KeySigner) PublicKey() string {
	return hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// Sign signs the canonical encoding of d.
func (s *KeySigner) Sign(ctx context.Context, d *txbuild.CallDescriptor) (*SignedCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := CanonicalPayload(d)
	if err != nil {
		return nil, err
	}
	return &SignedCall{
		Payload:   d,
		PublicKey: s.PublicKey(),
		Signature: hex.EncodeToString(ed25519.Sign(s.key, payload)),
	}, nil
}

// Verify reports whether sc carries a valid signature over its payload.
func Verify(sc *SignedCall) bool {
	pub, err := hex.DecodeString(sc.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sc.Signature)
	if err != nil {
		return false
	}
	payload, err := CanonicalPayload(sc.Payload)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}

// PromptSigner asks for confirmation on a terminal before delegating.
type PromptSigner struct {
	next       Signer
	in         *bufio.Reader
	out        io.Writer
	isTerminal func() bool
}

// NewPromptSigner wraps next with a y/N prompt on stdin/stdout.
func NewPromptSigner(next Signer) *PromptSigner {
	return &PromptSigner{
		next:       next,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Sign prints a summary of d and signs only on an explicit yes. Without a
// terminal there is nobody to ask, so the call is rejected.
func (s *PromptSigner) Sign(ctx context.Context, d *txbuild.CallDescriptor) (*SignedCall, error) {
	if !s.isTerminal() {
		return nil, fmt.Errorf("%w: confirmation requires a terminal", ErrSignRejected)
	}

	fmt.Fprintf(s.out, "Contract call %s.%s::%s\n", d.ContractAddress, d.ContractName, d.Function)
	for i, a := range d.Args {
		fmt.Fprintf(s.out, "  arg %d: %s\n", i, a)
	}
	if d.Transfer > 0 {
		fmt.Fprintf(s.out, "  transfers exactly %s STX\n", model.FormatMicro(d.Transfer))
	} else {
		fmt.Fprintln(s.out, "  transfers nothing")
	}
	fmt.Fprint(s.out, "Sign and broadcast? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, _ := s.in.ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-answer:
		if a != "y" && a != "yes" {
			return nil, ErrSignRejected
		}
	}
	return s.next.Sign(ctx, d)
}
