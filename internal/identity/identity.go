// Package identity implements authors and passes: masking a plaintext
// pass into a one-way digest the server can verify against without
// ever storing the plaintext, per spec §3 and property P1.
package identity

import (
	"encoding/base64"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// PassKind distinguishes a plaintext pass (known only to its author)
// from a masked digest (what the server persists and hands to other
// readers). The discriminant values are frozen on the wire — see
// internal/codec.
type PassKind uint32

const (
	PassPlain PassKind = 0
	PassMask  PassKind = 1
)

// Pass is a tagged variant: either Plain(text) or Mask(digest).
type Pass struct {
	Kind PassKind
	Text string
}

func PlainPass(text string) Pass { return Pass{Kind: PassPlain, Text: text} }
func maskPass(digest string) Pass { return Pass{Kind: PassMask, Text: digest} }

// IsMasked reports whether this pass is already a Mask.
func (p Pass) IsMasked() bool { return p.Kind == PassMask }

func digestFor(name, plain string) string {
	sum := blake3.Sum256([]byte(name + plain))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Author is a node's author: a display name plus a Pass.
type Author struct {
	Name string
	Pass Pass
}

// New constructs an Author holding a plaintext pass.
func New(name, plain string) Author {
	return Author{Name: name, Pass: PlainPass(plain)}
}

// Mask returns a copy of a with its pass converted to Mask, masking is
// idempotent: masking an already-masked author is a no-op.
func (a Author) Mask() Author {
	if a.Pass.IsMasked() {
		return a
	}
	return Author{Name: a.Name, Pass: maskPass(digestFor(a.Name, a.Pass.Text))}
}

// IsMasked reports whether a's pass is a Mask.
func (a Author) IsMasked() bool { return a.Pass.IsMasked() }

// MatchPass reports whether (name, plain) authenticates as a. A match
// requires the name to be equal and either the stored plain text to be
// equal (when a carries a plaintext pass) or the stored digest to
// equal digestFor(name, plain) (when a carries a masked pass).
func (a Author) MatchPass(name, plain string) bool {
	if a.Name != name {
		return false
	}
	if !a.Pass.IsMasked() {
		return a.Pass.Text == plain
	}
	return a.Pass.Text == digestFor(name, plain)
}

// EncodePass returns a short hex prefix of blake3(passBytes), used for
// a non-reversible display fingerprint distinct from the auth digest.
func (a Author) EncodePass(n int) string {
	sum := blake3.Sum256([]byte(a.Pass.Text))
	enc := hex.EncodeToString(sum[:])
	if n >= len(enc) {
		return enc
	}
	if n < 0 {
		n = 0
	}
	return enc[:n]
}
