package http

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dChain/rpc/common"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := &httpServerTransport{config: common.ServerConfig{LogLevel: "debug"}}
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})
	ts := httptest.NewServer(server.router())
	t.Cleanup(ts.Close)
	return ts
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"request", http.MethodPost, "/12", "abc", http.StatusOK, "12:abc"},
		{"empty body", http.MethodPost, "/1", "", http.StatusOK, "1:"},
		{"invalid shard", http.MethodPost, "/abc", "x", http.StatusBadRequest, ""},
		{"wrong method", http.MethodGet, "/1", "", http.StatusMethodNotAllowed, ""},
		{"health", http.MethodGet, "/health", "", http.StatusOK, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.want != "" {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tt.want {
					t.Errorf("body = %q, want %q", body, tt.want)
				}
			}
		})
	}
}

func TestClientTransport(t *testing.T) {
	ts := newTestServer(t)

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			RetryCount: 3,
			Endpoints:  []string{ts.URL, strings.TrimPrefix(ts.URL, "http://")},
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// both endpoints are hit through round-robin
	for i := 0; i < 4; i++ {
		resp, err := client.Send(5, []byte("payload"))
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if string(resp) != "5:payload" {
			t.Errorf("Send() = %q, want %q", resp, "5:payload")
		}
	}
}

func TestClientNotConnected(t *testing.T) {
	client := NewHttpClientTransport()
	if _, err := client.Send(1, nil); err == nil {
		t.Errorf("Send() before Connect error = nil, want error")
	}
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("Connect() without endpoints error = nil, want error")
	}
}

func TestClientServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{RetryCount: 2, Endpoints: []string{ts.URL}},
	}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Errorf("Send() error = nil, want http error")
	}
}
