package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// supportedEncodings is advertised explicitly, which turns off net/http's transparent
// gzip handling; decodeBody takes care of every encoding listed here.
const supportedEncodings = "gzip, deflate, br, zstd"

func nopClose() {}

// decodeBody wraps r with a decoder for the given Content-Encoding. Unknown or
// identity encodings return r unchanged. The returned func releases decoder resources.
func decodeBody(encoding string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nopClose, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nopClose, fmt.Errorf("gzip: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "deflate":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nopClose, fmt.Errorf("deflate: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case "br":
		return brotli.NewReader(r), nopClose, nil
	case "zstd":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nopClose, fmt.Errorf("zstd: %w", err)
		}
		return dec, dec.Close, nil
	default:
		return r, nopClose, nil
	}
}
