package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"offsetledger/pkg/requestcontext"
	"offsetledger/pkg/testutil"
)

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIPFromRequest(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", ClientIPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.2")
	assert.Equal(t, "198.51.100.4", ClientIPFromRequest(req))
}

func TestDescribeUserAgent(t *testing.T) {
	assert.Empty(t, DescribeUserAgent(""))
	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	assert.Contains(t, DescribeUserAgent(firefox), "Firefox/120.0")
	bot := "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	assert.Contains(t, DescribeUserAgent(bot), "bot")
}

func TestClientMetadata(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	testutil.DoRequest(h, req)
	assert.Equal(t, "203.0.113.9", ip)
	assert.Contains(t, ua, "Firefox")
}
