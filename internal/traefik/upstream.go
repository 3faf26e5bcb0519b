package traefik

import (
	"net/http"
	"net/http/httptest"
)

// UpstreamHeader names the upstream that served a simulated request.
const UpstreamHeader = "X-Upstream"

// upstream is a fake backend echoing the raw request it receives.
type upstream struct {
	name string
}

// newUpstream starts an upstream standing for the server URL name.
func newUpstream(name string) *httptest.Server {
	u := &upstream{name: name}

	handler := http.NewServeMux()
	handler.HandleFunc("/", u.handle)

	return httptest.NewServer(handler)
}

func (u *upstream) handle(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set(UpstreamHeader, u.name)
	rw.WriteHeader(http.StatusOK)

	if err := req.Write(rw); err != nil {
		http.Error(rw, "", http.StatusInternalServerError)

		return
	}
}
