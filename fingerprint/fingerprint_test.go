package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPPrefersTrueClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("True-Client-IP", "1.1.1.1")
	r.Header.Set("CF-Connecting-IP", "2.2.2.2")
	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")

	assert.Equal(t, "1.1.1.1", ClientIP(r, nil))
}

func TestClientIPFallsBackToCFConnectingIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("CF-Connecting-IP", "2.2.2.2")
	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")

	assert.Equal(t, "2.2.2.2", ClientIP(r, nil))
}

func TestClientIPTakesFirstForwardedForToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")

	assert.Equal(t, "3.3.3.3", ClientIP(r, nil))
}

func TestClientIPFallsBackToEdgeMetadata(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	edge := Edge{"clientIp": "5.5.5.5"}

	assert.Equal(t, "5.5.5.5", ClientIP(r, edge))
}

func TestClientIPDefaultsToUnknown(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, "unknown", ClientIP(r, nil))
}

func TestEdgeLookupResolvesDottedPath(t *testing.T) {
	edge := Edge{"tls": map[string]any{"version": "1.3"}}

	assert.Equal(t, "1.3", edge.Lookup("tls.version"))
}

func TestEdgeLookupReturnsEmptyForMissingSegment(t *testing.T) {
	edge := Edge{"tls": map[string]any{"version": "1.3"}}

	assert.Equal(t, "", edge.Lookup("tls.cipher"))
	assert.Equal(t, "", edge.Lookup("bot.score"))
}

func TestComputeIsStableAndOrderSensitive(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/path?q=1", nil)
	r.Header.Set("True-Client-IP", "1.1.1.1")
	req := Request{HTTP: r}

	a := Compute(req, []string{"clientIP", "method"})
	b := Compute(req, []string{"clientIP", "method"})
	c := Compute(req, []string{"method", "clientIP"})

	assert.Equal(t, a, b, "fingerprint must be deterministic for the same inputs")
	assert.NotEqual(t, a, c, "parameter order is part of the fingerprint")
}

func TestComputeResolvesURLProperties(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com:8080/admin?x=1#frag", nil)
	req := Request{HTTP: r}

	withPath := Compute(req, []string{"url.pathname"})
	withHost := Compute(req, []string{"url.hostname"})
	assert.NotEqual(t, withPath, withHost)
}

func TestComputeResolvesHeaderParameter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "test-agent")
	req := Request{HTTP: r}

	withAgent := Compute(req, []string{"headers.User-Agent"})
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("User-Agent", "other-agent")
	withOtherAgent := Compute(Request{HTTP: r2}, []string{"headers.User-Agent"})

	assert.NotEqual(t, withAgent, withOtherAgent)
}

func TestComputeResolvesBodyPointer(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	body := []byte(`{"user":{"id":"42"}}`)
	req := Request{HTTP: r, Body: body}

	assert.NotEqual(t, Compute(req, []string{"body.user/id"}), Compute(req, []string{"body"}))
}

func TestHeaderNameValueResolvesWhenHeaderMatches(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Flag", "on")

	assert.Equal(t, "X-Flag:on", resolveParameter(Request{HTTP: r}, "headers.nameValue:X-Flag=on"))
}

func TestHeaderNameValueEmptyWhenHeaderDiffers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Flag", "off")

	assert.Equal(t, "", resolveParameter(Request{HTTP: r}, "headers.nameValue:X-Flag=on"))
}

func TestCookieNameResolvesWhenCookiePresent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	assert.Equal(t, "session", resolveParameter(Request{HTTP: r}, "headers.cookieName:session"))
}

func TestCookieNameEmptyWhenCookieAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, "", resolveParameter(Request{HTTP: r}, "headers.cookieName:session"))
}

func TestCookieNameValueResolvesWhenCookieEquals(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	assert.Equal(t, "session:abc", resolveParameter(Request{HTTP: r}, "headers.cookieNameValue:session=abc"))
}

func TestCookieNameValueEmptyWhenCookieDiffers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "other"})

	assert.Equal(t, "", resolveParameter(Request{HTTP: r}, "headers.cookieNameValue:session=abc"))
}

func TestBodyPointerFallsBackToRawBodyWhenNotJSON(t *testing.T) {
	assert.Equal(t, "not json", bodyPointer([]byte("not json"), "/anything"))
}

func TestBodyPointerReturnsEmptyForMissingField(t *testing.T) {
	assert.Equal(t, "", bodyPointer([]byte(`{"a":1}`), "/b"))
}

func TestUnknownParameterResolvesToEmptyString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	req := Request{HTTP: r}

	assert.Equal(t, "", resolveParameter(req, "nonsense"))
}
