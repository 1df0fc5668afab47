package pkgstore

import (
	"archive/tar"
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		flag := entry.typeflag
		if flag == 0 {
			flag = tar.TypeReg
		}
		header := &tar.Header{Name: entry.name, Mode: 0o644, Typeflag: flag}
		if flag == tar.TypeXGlobalHeader {
			// 全局 PAX 头只允许携带 PAXRecords。
			header = &tar.Header{Typeflag: flag, PAXRecords: map[string]string{"comment": entry.body}}
		}
		if flag == tar.TypeReg {
			header.Size = int64(len(entry.body))
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if flag == tar.TypeReg {
			if _, err := tw.Write([]byte(entry.body)); err != nil {
				t.Fatalf("write body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestFromBuffers(t *testing.T) {
	store, err := FromBuffers("@org/pkg", "", `"etag"`, [][]byte{[]byte(`{"name":"@org/pkg"}`)}, []string{"package.json"})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if store.Name() != "@org/pkg" || store.Version() != "" || store.ETag() != `"etag"` {
		t.Fatalf("unexpected store identity: %s %s %s", store.Name(), store.Version(), store.ETag())
	}
	if string(store.File("package.json")) != `{"name":"@org/pkg"}` {
		t.Fatalf("package.json mismatch: %s", store.File("package.json"))
	}
	if store.Archive() != nil {
		t.Fatalf("buffer stores carry no archive")
	}
}

func TestFromBuffersLengthMismatch(t *testing.T) {
	if _, err := FromBuffers("pkg", "", "", [][]byte{nil, nil}, []string{"a"}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestFromTarGzStripsTopLevelDirectory(t *testing.T) {
	data := buildTarGz(t, []tarEntry{
		{body: "abc123def456", typeflag: tar.TypeXGlobalHeader},
		{name: "org-pkg-abc123/", typeflag: tar.TypeDir},
		{name: "org-pkg-abc123/package.json", body: `{"name":"pkg","version":"1.0.0"}`},
		{name: "org-pkg-abc123/lib/index.js", body: "module.exports = 1"},
	})

	store, err := FromTarGz("@org/pkg", "1.0.0", `W/"x"`, data)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	files := store.Files()
	if len(files) != 2 || files[0] != "lib/index.js" || files[1] != "package.json" {
		t.Fatalf("unexpected files: %v", files)
	}
	if string(store.File("lib/index.js")) != "module.exports = 1" {
		t.Fatalf("index.js mismatch")
	}
	if !bytes.Equal(store.Archive(), data) {
		t.Fatalf("archive should keep the original bytes")
	}
	if store.Size() != int64(len(`{"name":"pkg","version":"1.0.0"}`)+len("module.exports = 1")) {
		t.Fatalf("unexpected size %d", store.Size())
	}
}

func TestFromTarGzRejectsGarbage(t *testing.T) {
	if _, err := FromTarGz("pkg", "1.0.0", "", []byte("not gzip")); err == nil {
		t.Fatalf("expected gzip error")
	}
}

func TestFromTarGzEntryLimit(t *testing.T) {
	big := make([]byte, maxEntrySize+1)
	data := buildTarGz(t, []tarEntry{{name: "top/big.bin", body: string(big)}})
	_, err := FromTarGz("pkg", "1.0.0", "", data)
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("expected ErrEntryTooLarge, got %v", err)
	}
}
