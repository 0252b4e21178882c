package validator

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/auth-platform/file-upload/internal/domain"
)

// verifyStructure implements §4.6's best-effort structural validation:
// .json must parse as a single JSON value; .jsonl must parse line-by-line,
// skipping blank lines, reporting the first failing line. r is consumed
// directly rather than requiring its caller to buffer the object first —
// json.Decoder and bufio.Scanner both work incrementally off the stream.
func (v *Validator) verifyStructure(r io.Reader, fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".json":
		var parsed any
		if err := json.NewDecoder(r).Decode(&parsed); err != nil {
			return domain.New(domain.KindStructural, "assembled object is not valid JSON", err)
		}
	case ".jsonl":
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var parsed any
			if err := json.Unmarshal(line, &parsed); err != nil {
				return domain.New(domain.KindStructural, fmt.Sprintf("line %d is not valid JSON", lineNo), err).
					WithDetails(map[string]any{"line": lineNo})
			}
		}
		if err := scanner.Err(); err != nil {
			return domain.New(domain.KindStructural, "failed reading assembled JSONL object", err)
		}
	}
	return nil
}
