package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

type collectSink struct{ buf bytes.Buffer }

func (s *collectSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func TestHTTPHandleFactory_SharesTransportAcrossHandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("body"))
	}))
	defer server.Close()

	factory := NewHTTPHandleFactory()
	provider := domain.Provider{Name: "mirror", BaseURI: server.URL + "/"}

	first := factory.New(provider).(*HTTPHandle)
	first.SetURL(server.URL + "/a.bin")
	var sink1 collectSink
	if err := first.Perform(&sink1); err != nil {
		t.Fatalf("first Perform: %v", err)
	}
	if first.ConnectTime() <= 0 {
		t.Error("expected a fresh dial to report a non-zero connect time")
	}

	second := factory.New(provider).(*HTTPHandle)
	second.SetURL(server.URL + "/b.bin")
	var sink2 collectSink
	if err := second.Perform(&sink2); err != nil {
		t.Fatalf("second Perform: %v", err)
	}
	if second.ConnectTime() != 0 {
		t.Errorf("expected the pooled connection to report zero connect time on reuse, got %v", second.ConnectTime())
	}
}
