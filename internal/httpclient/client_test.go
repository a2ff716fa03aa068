package httpclient

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestShouldBypassProxyMatchesExactAndSuffix(t *testing.T) {
	patterns := []string{"internal.example.com", ".corp.example.com"}
	cases := []struct {
		host string
		want bool
	}{
		{"internal.example.com", true},
		{"api.corp.example.com", true},
		{"corp.example.com", true},
		{"example.com", false},
		{"", false},
	}
	for _, c := range cases {
		if got := shouldBypassProxy(c.host, patterns); got != c.want {
			t.Errorf("shouldBypassProxy(%q) = %v, want %v", c.host, got, c.want)
		}
	}
}

func TestShouldBypassProxyWildcard(t *testing.T) {
	if !shouldBypassProxy("anything.example.com", []string{"*"}) {
		t.Fatal("expected wildcard NO_PROXY entry to bypass every host")
	}
}

func TestParseNoProxyListTrimsAndLowercases(t *testing.T) {
	got := parseNoProxyList(" Example.COM , .corp.example.com ,,")
	want := []string{"example.com", ".corp.example.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDecompressGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("hello world"))
	_ = gz.Close()

	rc := decompress("gzip", io.NopCloser(bytes.NewReader(buf.Bytes())))
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("expected decompressed %q, got %q", "hello world", data)
	}
}

func TestDecompressPassesThroughUnknownEncoding(t *testing.T) {
	rc := decompress("identity", io.NopCloser(bytes.NewReader([]byte("raw"))))
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "raw" {
		t.Fatalf("expected passthrough %q, got %q", "raw", data)
	}
}
