package blob

import (
	"strconv"
	"strings"

	"github.com/asad/blobreader/internal/blobstore"
)

// acceptEncoding parses an Accept-Encoding header value.
//
// A coding is accepted when it is listed with a non-zero q value, or when it
// is not listed and "*" is. identity is accepted unless refused explicitly.
// An absent header accepts identity only, so plain clients get decompressed
// bodies.
func acceptEncoding(header string) blobstore.AcceptFunc {
	weights := map[string]float64{}
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(part, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding == "" {
			continue
		}

		q := 1.0
		for _, p := range strings.Split(params, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				q = parsed
			}
		}
		weights[coding] = q
	}

	return func(encoding string) bool {
		encoding = strings.ToLower(encoding)
		if q, ok := weights[encoding]; ok {
			return q > 0
		}
		if q, ok := weights["*"]; ok {
			return q > 0
		}
		return encoding == blobstore.EncodingIdentity
	}
}
