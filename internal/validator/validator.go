// Package validator implements the Validator (§4.6): pre-ingest
// type/size gating and post-assembly digest/structural verification.
package validator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/objectstore"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/security"
)

// sniffHeadSize is how much of the assembled object's head is read for
// content-sniffing — enough for filetype.Match's magic-byte signatures.
const sniffHeadSize = 262

// Config configures gating allow-lists and size bounds.
type Config struct {
	AllowedTypes      []string
	AllowedExtensions []string
	MaxFileSize       int64
	DigestAlgorithm   string
}

// Validator implements §4.6.
type Validator struct {
	allowedTypes      map[string]bool
	allowedExtensions map[string]bool
	maxFileSize       int64
	digestAlgorithm   string
	detector          *MIMETypeDetector
	store             objectstore.Store
	log               *observability.Logger
}

// New wires the Validator over the Object Store (for streaming the
// assembled object during digest/structural verification).
func New(cfg Config, store objectstore.Store, log *observability.Logger) *Validator {
	types := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		types[strings.ToLower(t)] = true
	}
	exts := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, e := range cfg.AllowedExtensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	algo := cfg.DigestAlgorithm
	if algo == "" {
		algo = "sha256"
	}
	return &Validator{
		allowedTypes:      types,
		allowedExtensions: exts,
		maxFileSize:       cfg.MaxFileSize,
		digestAlgorithm:   algo,
		detector:          NewMIMETypeDetector(),
		store:             store,
		log:               log,
	}
}

// Gate implements §4.6's type gating and size gating. The declared-type
// and extension allow-lists are checked independently; failures are
// aggregated into a single VALIDATION_ERROR with both reasons in details.
func (v *Validator) Gate(declaredType, fileName string, declaredSize int64) error {
	var reasons []string

	if !security.ValidateFilename(fileName) {
		reasons = append(reasons, fmt.Sprintf("file_name %q failed safety check", fileName))
	}

	if declaredSize <= 0 || declaredSize > v.maxFileSize {
		reasons = append(reasons, fmt.Sprintf("declared_size %d out of bounds (0, %d]", declaredSize, v.maxFileSize))
	}

	if !v.allowedTypes[strings.ToLower(declaredType)] {
		reasons = append(reasons, fmt.Sprintf("declared_type %q not in allow-list", declaredType))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !v.allowedExtensions[ext] {
		reasons = append(reasons, fmt.Sprintf("extension %q not in allow-list", ext))
	}

	if len(reasons) > 0 {
		return domain.New(domain.KindValidation, "file gating failed", nil).
			WithDetails(map[string]any{"reasons": reasons})
	}
	return nil
}

// VerifyAssembled implements §4.6's post-assembly checks: digest
// verification when expectedDigest is non-empty, then structural
// validation for .json/.jsonl file names. Both read the assembled
// object streamed from the Object Store via GetStream rather than
// loading it whole through Get. The digest pass holds only io.Copy's
// buffer; the structural pass holds a .json object's whole decoded value
// (json.Decoder reads it as one value) or one .jsonl line at a time, plus
// the sniffHeadSize-byte head.
func (v *Validator) VerifyAssembled(ctx context.Context, finalKey, expectedDigest, fileName string) error {
	if expectedDigest == "" {
		if v.log != nil {
			v.log.WithComponent("validator").Warn("no expected_digest supplied, skipping integrity check for " + finalKey)
		}
	} else {
		digestStream, err := v.store.GetStream(ctx, finalKey)
		if err != nil {
			return domain.New(domain.KindStorage, "read assembled object failed", err)
		}
		verr := v.verifyDigest(digestStream, expectedDigest)
		digestStream.Close()
		if verr != nil {
			return verr
		}
	}

	structStream, err := v.store.GetStream(ctx, finalKey)
	if err != nil {
		return domain.New(domain.KindStorage, "read assembled object failed", err)
	}
	defer structStream.Close()

	head := make([]byte, sniffHeadSize)
	n, rerr := io.ReadFull(structStream, head)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		return domain.New(domain.KindStorage, "read assembled object failed", rerr)
	}
	head = head[:n]

	if err := v.verifyStructure(io.MultiReader(bytes.NewReader(head), structStream), fileName); err != nil {
		return err
	}

	v.sniffConsistency(head, fileName)
	return nil
}

// sniffConsistency content-sniffs the assembled object's head and logs a
// warning (never fails the completion call) if the result disagrees with
// the extension's expected type — a best-effort signal on top of the
// declared-type gate, which is the only check §4.6 makes load-bearing.
func (v *Validator) sniffConsistency(head []byte, fileName string) {
	if v.log == nil {
		return
	}
	sniffed, err := v.detector.DetectFromBytes(head)
	if err != nil || sniffed == "" {
		return
	}
	expected := v.detector.GetExpectedMIMEType(fileName)
	if expected != "" && expected != sniffed {
		v.log.WithComponent("validator").Warn(fmt.Sprintf("content-sniffed type %q disagrees with extension-expected %q for %s", sniffed, expected, fileName))
	}
}
