package util

import (
	"reflect"
	"strings"
	"testing"

	dbutil "github.com/ValentinKolb/dChain/lib/db/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"42", 42},
		{"18446744073709551615", 18446744073709551615},
		{"orders", uint64(dbutil.HashString("orders", 0))},
		{"-1", uint64(dbutil.HashString("-1", 0))},
	}
	for _, tt := range tests {
		if got := ParseKey(tt.in); got != tt.want {
			t.Errorf("ParseKey(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValueCodecs(t *testing.T) {
	tests := []struct {
		codec string
		in    string
		want  string
	}{
		{"string", "hello world", "hello world"},
		{"int64", "-17", "-17"},
		{"json", `{"a":1}`, `{"a":1}`},
		{"msgpack", `{"b":"x"}`, `{"b":"x"}`},
		{"cbor", `{"c":true}`, `{"c":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			c, err := GetValueCodec(tt.codec)
			if err != nil {
				t.Fatalf("GetValueCodec() error = %v", err)
			}
			payload, err := c.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			got, err := c.Format(payload)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Format(Parse(%q)) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := GetValueCodec("xml"); err == nil {
		t.Errorf("GetValueCodec(xml) error = nil, want error")
	}
	c, _ := GetValueCodec("int64")
	if _, err := c.Parse("abc"); err == nil {
		t.Errorf("int64 Parse(abc) error = nil, want error")
	}
	c, _ = GetValueCodec("json")
	if _, err := c.Parse("[1,2]"); err == nil {
		t.Errorf("json Parse([1,2]) error = nil, want error")
	}
}

func TestWrapString(t *testing.T) {
	got := WrapString("aaaa bbbb")
	if got != "aaaa bbbb" {
		t.Errorf("WrapString() = %q, want unchanged", got)
	}
	long := "word word word word word word word word word word word word"
	for _, line := range strings.Split(WrapString(long), "\n") {
		if len(line) > Wrap {
			t.Errorf("WrapString() line %q longer than %d", line, Wrap)
		}
	}
}

func TestGetClientConfig(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		wantEndpoints []string
		wantTimeout   int
		wantWriteBuf  int
	}{
		{name: "defaults", wantEndpoints: []string{"http://localhost:8080"}, wantTimeout: 10, wantWriteBuf: 512 * 1024},
		{
			name:          "endpoint list",
			args:          []string{"--transport-endpoints", "a:1, b:2,,", "--timeout", "3", "--transport-write-buffer", "4"},
			wantEndpoints: []string{"a:1", "b:2"},
			wantTimeout:   3,
			wantWriteBuf:  4 * 1024,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()

			cmd := &cobra.Command{Use: "client"}
			SetupRPCClientFlags(cmd)
			if err := cmd.PersistentFlags().Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
				t.Fatalf("BindPFlags() error = %v", err)
			}

			conf := GetClientConfig()
			if !reflect.DeepEqual(conf.Transport.Endpoints, tt.wantEndpoints) {
				t.Errorf("GetClientConfig() endpoints = %q, want %q", conf.Transport.Endpoints, tt.wantEndpoints)
			}
			if conf.TimeoutSecond != tt.wantTimeout {
				t.Errorf("GetClientConfig() timeout = %d, want %d", conf.TimeoutSecond, tt.wantTimeout)
			}
			if conf.Transport.SocketConf.WriteBufferSize != tt.wantWriteBuf {
				t.Errorf("GetClientConfig() write buffer = %d, want %d", conf.Transport.SocketConf.WriteBufferSize, tt.wantWriteBuf)
			}
			if !conf.Transport.TCPConf.TCPNoDelay {
				t.Errorf("GetClientConfig() TCPNoDelay = false, want true")
			}
		})
	}
}
