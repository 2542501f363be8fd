package base

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dChain/rpc/common"
)

// testConnector listens on a random loopback port
type testConnector struct {
	addr chan string
}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, err
	}
	c.addr <- l.Addr().String()
	return l, nil
}

func (c *testConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return ApplyTCPConf(conn, config.Transport.TCPConf)
}

func (c *testConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

type testClientConnector struct{ testConnector }

func (c *testClientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return ApplySocketConf(conn, config.Transport.SocketConf)
}

// startServer starts an echo server that prefixes responses with the shard id
func startServer(t *testing.T) (string, func()) {
	t.Helper()
	connector := &testConnector{addr: make(chan string, 1)}
	server := NewBaseServerTransport(connector, 1024)
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport: common.ServerTransportConfig{
				Endpoint:       "127.0.0.1:0",
				WorkersPerConn: 4,
				TCPConf:        common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
			},
		})
	}()

	var addr string
	select {
	case addr = <-connector.addr:
	case err := <-done:
		t.Fatalf("Listen() failed: %v", err)
	}

	return addr, func() {
		if err := server.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Listen() returned %v after Close, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Listen() did not return after Close")
		}
	}
}

func newClient(t *testing.T, addr string, conns int) *clientTransport {
	t.Helper()
	client := NewBaseClientTransport(&testClientConnector{}).(*clientTransport)
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			RetryCount:             2,
			Endpoints:              []string{addr},
			ConnectionsPerEndpoint: conns,
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return client
}

func TestFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := bytes.Repeat([]byte("x"), 100)
	go func() {
		_ = writeFrame(client, 7, 42, payload)
		_ = writeFrame(client, 8, 43, nil)
	}()

	// buffer smaller than the payload forces a temporary allocation
	shardID, requestID, data, err := readFrame(server, make([]byte, 32))
	if err != nil {
		t.Fatalf("readFrame() error = %v", err)
	}
	if shardID != 7 || requestID != 42 || !bytes.Equal(data, payload) {
		t.Errorf("readFrame() = %d, %d, %d bytes, want 7, 42, %d bytes", shardID, requestID, len(data), len(payload))
	}

	shardID, requestID, data, err = readFrame(server, nil)
	if err != nil {
		t.Fatalf("readFrame() error = %v", err)
	}
	if shardID != 8 || requestID != 43 || len(data) != 0 {
		t.Errorf("readFrame() = %d, %d, %v, want 8, 43, empty", shardID, requestID, data)
	}
}

func TestSendReceive(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	client := newClient(t, addr, 2)
	defer client.Close()

	resp, err := client.Send(3, []byte("hello"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(resp) != "3:hello" {
		t.Errorf("Send() = %q, want %q", resp, "3:hello")
	}
}

func TestConcurrentSend(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	client := newClient(t, addr, 3)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req-%d", i)
			resp, err := client.Send(uint64(i), []byte(req))
			if err != nil {
				t.Errorf("Send(%d) error = %v", i, err)
				return
			}
			if want := fmt.Sprintf("%d:%s", i, req); string(resp) != want {
				t.Errorf("Send(%d) = %q, want %q", i, resp, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectFailure(t *testing.T) {
	// grab a free port and release it again
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	client := NewBaseClientTransport(&testClientConnector{})
	err = client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{addr}},
	})
	if err == nil {
		t.Errorf("Connect() to closed port error = nil, want error")
	}

	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("Connect() without endpoints error = nil, want error")
	}
}

func TestSendAfterClose(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	client := newClient(t, addr, 1)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Errorf("Send() after Close error = nil, want error")
	}
}
