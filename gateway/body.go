package gateway

import (
	"bytes"
	"io"
	"net/http"

	gwio "github.com/erfianugrah/do-rl-worker/io"
)

// bufferRequestBody reads the whole of r.Body through io.CopyBodyStream,
// which tees up to maxBytes of it into a side buffer. It re-assigns
// r.Body to an in-memory reader over the full body (updating
// ContentLength) for forwarding, and returns the teed prefix for the
// fingerprinter/evaluator. A nil or already-empty body is left untouched.
func bufferRequestBody(r *http.Request, maxBytes int) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	buf := &bytes.Buffer{}
	stream := gwio.NewCopyBodyStream(maxBytes, buf, r.Body)
	body, err := io.ReadAll(stream)
	if err != nil {
		return nil
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	return buf.Bytes()
}
