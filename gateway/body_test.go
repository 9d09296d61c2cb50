package gateway

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRequestBodyPreservesFullBodyForForwarding(t *testing.T) {
	content := strings.Repeat("a", 100)
	req := httptest.NewRequest("POST", "/", strings.NewReader(content))

	got := bufferRequestBody(req, 10)

	assert.Equal(t, content[:10], string(got))

	replayed, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(replayed))
	assert.EqualValues(t, len(content), req.ContentLength)
}

func TestBufferRequestBodyHandlesNilBody(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Body = nil

	got := bufferRequestBody(req, 10)

	assert.Nil(t, got)
}

func TestBufferRequestBodySmallerThanCap(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("short"))

	got := bufferRequestBody(req, 1024)

	assert.Equal(t, "short", string(got))
}
