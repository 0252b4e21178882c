package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/security"
)

// newHasher returns the configured digest algorithm's hash.Hash. Grounded
// on internal/hash/generator.go, with its invalid *sha256.Digest concrete
// type assertion replaced by the exported hash.Hash interface — sha256.Sum
// does not expose its internal digest type outside the crypto/sha256
// package, so code outside it must hold the interface, not the concrete
// type.
func (v *Validator) newHasher() (hash.Hash, error) {
	switch strings.ToLower(v.digestAlgorithm) {
	case "sha256", "":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", v.digestAlgorithm)
	}
}

// verifyDigest implements §4.6's post-assembly digest check: stream r
// through the configured algorithm and compare lowercase hex,
// byte-for-byte, against expectedDigest (which may carry an "algo:"
// prefix such as "sha256:<hex>"). r is never buffered whole — only the
// hasher's fixed-size internal state grows as bytes pass through.
func (v *Validator) verifyDigest(r io.Reader, expectedDigest string) error {
	h, err := v.newHasher()
	if err != nil {
		return domain.New(domain.KindInternal, "digest algorithm unavailable", err)
	}
	if _, err := io.Copy(h, r); err != nil {
		return domain.New(domain.KindStorage, "read assembled object failed", err)
	}
	computed := hex.EncodeToString(h.Sum(nil))

	want := expectedDigest
	if idx := strings.Index(want, ":"); idx >= 0 {
		want = want[idx+1:]
	}
	want = strings.ToLower(want)

	if !security.ConstantTimeCompare(computed, want) {
		return domain.New(domain.KindDigestMismatch, "assembled object digest mismatch", nil).
			WithDetails(map[string]any{"expected": want, "computed": computed})
	}
	return nil
}
