package pagefile

import (
	"path/filepath"
	"testing"
)

// testImpls runs the same PageFile contract against every
// implementation this package ships.
func testImpls(t *testing.T) map[string]PageFile {
	t.Helper()
	return map[string]PageFile{
		"MemFile":  NewMemFile(),
		"DiskFile": NewDiskFile(filepath.Join(t.TempDir(), "data.pf")),
	}
}

func TestPageFileReadWriteRoundTrip(t *testing.T) {
	for name, pf := range testImpls(t) {
		t.Run(name, func(t *testing.T) {
			if !pf.Open(ModeTruncate) {
				t.Fatal("Open failed")
			}
			defer pf.Close()

			const pageSize = 16
			page0 := make([]byte, pageSize)
			for i := range page0 {
				page0[i] = byte(i)
			}
			page3 := make([]byte, pageSize)
			for i := range page3 {
				page3[i] = byte(i + 100)
			}

			if n, err := pf.WritePage(3, pageSize, page3); err != nil || n != 1 {
				t.Fatalf("WritePage(3): n=%d err=%v", n, err)
			}
			if n, err := pf.WritePage(0, pageSize, page0); err != nil || n != 1 {
				t.Fatalf("WritePage(0): n=%d err=%v", n, err)
			}

			got := make([]byte, pageSize)
			if n, err := pf.ReadPage(3, pageSize, got); err != nil || n != 1 {
				t.Fatalf("ReadPage(3): n=%d err=%v", n, err)
			}
			for i := range got {
				if got[i] != page3[i] {
					t.Fatalf("ReadPage(3)[%d] = %d, want %d", i, got[i], page3[i])
				}
			}

			if n, err := pf.ReadPage(0, pageSize, got); err != nil || n != 1 {
				t.Fatalf("ReadPage(0): n=%d err=%v", n, err)
			}
			for i := range got {
				if got[i] != page0[i] {
					t.Fatalf("ReadPage(0)[%d] = %d, want %d", i, got[i], page0[i])
				}
			}
		})
	}
}

func TestPageFileSeekTellRelative(t *testing.T) {
	for name, pf := range testImpls(t) {
		t.Run(name, func(t *testing.T) {
			if !pf.Open(ModeTruncate) {
				t.Fatal("Open failed")
			}
			defer pf.Close()

			payload := []byte("hello, embeddb")
			if n, err := pf.WriteRel(payload, len(payload), len(payload)); err != nil || n != len(payload) {
				t.Fatalf("WriteRel: n=%d err=%v", n, err)
			}

			pos, err := pf.Tell()
			if err != nil {
				t.Fatalf("Tell: %v", err)
			}
			if pos != int64(len(payload)) {
				t.Fatalf("Tell() = %d, want %d", pos, len(payload))
			}

			if err := pf.Seek(0); err != nil {
				t.Fatalf("Seek: %v", err)
			}

			got := make([]byte, len(payload))
			n, err := pf.ReadRel(got, len(payload), len(payload))
			if err != nil {
				t.Fatalf("ReadRel: %v", err)
			}
			if n != len(payload) || string(got) != string(payload) {
				t.Fatalf("ReadRel: got %q, want %q", got[:n], payload)
			}
		})
	}
}

func TestPageFileClosedIsErr(t *testing.T) {
	for name, pf := range testImpls(t) {
		t.Run(name, func(t *testing.T) {
			if !pf.Open(ModeTruncate) {
				t.Fatal("Open failed")
			}
			pf.Close()

			buf := make([]byte, 8)
			if _, err := pf.ReadPage(0, 8, buf); err == nil {
				t.Fatal("expected error reading a closed PageFile")
			}
		})
	}
}

func TestPageFileSize(t *testing.T) {
	for name, pf := range testImpls(t) {
		t.Run(name, func(t *testing.T) {
			if !pf.Open(ModeTruncate) {
				t.Fatal("Open failed")
			}
			defer pf.Close()

			buf := make([]byte, 32)
			if _, err := pf.WritePage(2, 32, buf); err != nil {
				t.Fatalf("WritePage: %v", err)
			}
			size, err := pf.Size()
			if err != nil {
				t.Fatalf("Size: %v", err)
			}
			if size < 3*32 {
				t.Fatalf("Size() = %d, want at least %d after writing page 2", size, 3*32)
			}
		})
	}
}
