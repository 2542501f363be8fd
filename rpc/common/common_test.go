package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

func TestMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode uint64
		wantMsg  string
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom"), wantMsg: "boom"},
		{name: "store error", err: store.NewError(store.RetCUnsupportedOperation, "append operation is not supported"), wantCode: uint64(store.RetCUnsupportedOperation), wantMsg: "append operation is not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewChainAppendResponse(tt.err)
			if msg.ErrCode != tt.wantCode || msg.Err != tt.wantMsg {
				t.Errorf("SetErr() = (%d, %q), want (%d, %q)", msg.ErrCode, msg.Err, tt.wantCode, tt.wantMsg)
			}

			got := msg.AsError()
			if (got == nil) != (tt.err == nil) {
				t.Fatalf("AsError() = %v, want %v", got, tt.err)
			}
			if tt.wantCode != 0 && !errors.Is(got, store.NewError(store.RetCUnsupportedOperation, "")) {
				t.Errorf("AsError() = %v, want store error with code %d", got, tt.wantCode)
			}
		})
	}
}

func TestChainMessages(t *testing.T) {
	c := chain.New(chain.NewElement(1, []byte("a")), chain.NewElement(4, []byte("b")))

	resp := NewChainGetResponse(c, nil)
	got, err := chain.Decode(resp.Value)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(c) {
		t.Errorf("Get response chain = %v, want %v", got.IDs(), c.IDs())
	}

	req := NewChainReplaceAtHeadRequest(9, c, chain.FromPayloads([]byte("x")))
	ids, _, err := chain.DecodeIDs(req.Expect)
	if err != nil {
		t.Fatalf("DecodeIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Errorf("expect ids = %v, want [1 4]", ids)
	}
	update, err := chain.Decode(req.Update)
	if err != nil || update.Len() != 1 || string(update.At(0).Payload()) != "x" {
		t.Errorf("update = %v, %v, want [x]", update.Payloads(), err)
	}

	// errors carry no chain
	if resp := NewChainGetResponse(c, errors.New("boom")); resp.Value != nil {
		t.Errorf("error response carries a chain")
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for msgType := MsgTUnknown; msgType <= MsgTCustom; msgType++ {
		data, err := json.Marshal(msgType)
		if err != nil {
			t.Fatalf("Marshal(%s) error = %v", msgType, err)
		}
		var got MessageType
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if got != msgType {
			t.Errorf("Unmarshal(%s) = %s, want %s", data, got, msgType)
		}
	}

	var got MessageType
	if err := json.Unmarshal([]byte(`"set"`), &got); err == nil {
		t.Errorf("Unmarshal(set) error = nil")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{in: "debug", want: logger.DEBUG},
		{in: "INFO", want: logger.INFO},
		{in: "warn", want: logger.WARNING},
		{in: "warning", want: logger.WARNING},
		{in: "error", want: logger.ERROR},
		{in: "critical", want: logger.CRITICAL},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerFactory(t *testing.T) {
	tests := []struct {
		backend, format string
		wantErr         bool
	}{
		{backend: "zap", format: "console"},
		{backend: "zap", format: "json"},
		{backend: "logrus", format: "text"},
		{backend: "logrus", format: "json"},
		{backend: "", format: ""},
		{backend: "zap", format: "xml", wantErr: true},
		{backend: "stdlib", format: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.format, func(t *testing.T) {
			factory, err := NewLoggerFactory(tt.backend, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLoggerFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			l := factory("test")
			l.SetLevel(logger.ERROR)
			l.Debugf("filtered %d", 1)
			l.Errorf("written %d", 2)

			defer func() {
				if recover() == nil {
					t.Errorf("Panicf() did not panic")
				}
			}()
			l.Panicf("panic %d", 3)
		})
	}
}

func TestConfigString(t *testing.T) {
	conf := ServerConfig{
		Shards: []ServerShard{
			{ShardID: 1, Type: ShardTypeLocalIStore},
			{ShardID: 2, Type: ShardTypeRedisILockManager},
		},
		Engine: "maple",
		Redis:  RedisConfig{Addrs: []string{"localhost:6379"}},
	}
	if !conf.HasRedisShard() || conf.HasRemoteShard() {
		t.Errorf("HasRedisShard() = %v, HasRemoteShard() = %v, want true, false", conf.HasRedisShard(), conf.HasRemoteShard())
	}
	if s := conf.String(); s == "" {
		t.Errorf("String() is empty")
	}
	if !ShardTypeRemoteILockManager.IsLockManager() || ShardTypeLocalIStore.IsLockManager() {
		t.Errorf("IsLockManager() wrong")
	}
}
