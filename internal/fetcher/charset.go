package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// decodeBody converts body to UTF-8. A declared non-UTF-8 source encoding
// wins; otherwise the Content-Type header and meta tags are sniffed.
func decodeBody(body []byte, declared, contentType string) ([]byte, error) {
	label := strings.ToLower(strings.TrimSpace(declared))
	if label != "" && label != "utf-8" && label != "utf8" {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", label, err)
		}
		return io.ReadAll(r)
	}

	if contentType == "" {
		return body, nil
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (name == "windows-1252" && isASCII(body)) {
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
