package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"

	"github.com/starford/thinkink/internal/apperr"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
)

func TestNewImage(t *testing.T) {
	img, err := NewImage("page.png", pngBytes)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if img.ContentType != "image/png" || img.Ext() != ".png" {
		t.Errorf("png image = %+v", img)
	}

	img, err = NewImage("page.jpg", jpegBytes)
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	if img.Ext() != ".jpg" {
		t.Errorf("jpeg ext = %q", img.Ext())
	}

	for name, data := range map[string][]byte{
		"empty": nil,
		"gif":   []byte("GIF89a......"),
		"text":  []byte("just some text"),
	} {
		if _, err := NewImage(name, data); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func fakeTesseract(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	p := filepath.Join(t.TempDir(), "tesseract")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTesseract_Success(t *testing.T) {
	bin := fakeTesseract(t, "cat >/dev/null\necho \"lang=$4\"\necho 'Hello World'\n")
	r := NewTesseract(bin, "deu", 0)

	var progress []float64
	out, err := r.Recognize(context.Background(), Image{ContentType: "image/png", Data: pngBytes}, func(p float64) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if out != "lang=deu\nHello World\n" {
		t.Errorf("out = %q", out)
	}
	if len(progress) != 2 || progress[0] != 0 || progress[1] != 100 {
		t.Errorf("progress = %v, want [0 100]", progress)
	}
}

func TestTesseract_Failure(t *testing.T) {
	bin := fakeTesseract(t, "echo 'cannot read image' >&2\nexit 1\n")
	r := NewTesseract(bin, "", 0)

	_, err := r.Recognize(context.Background(), Image{Data: pngBytes}, nil)
	if !errors.Is(err, apperr.ErrOCRFailure) {
		t.Fatalf("err = %v, want ErrOCRFailure", err)
	}
	if !strings.Contains(err.Error(), "cannot read image") {
		t.Errorf("stderr not included: %v", err)
	}
}

func TestTesseract_MissingBinary(t *testing.T) {
	r := NewTesseract(filepath.Join(t.TempDir(), "nope"), "", 0)
	if _, err := r.Recognize(context.Background(), Image{Data: pngBytes}, nil); !errors.Is(err, apperr.ErrOCRFailure) {
		t.Errorf("err = %v, want ErrOCRFailure", err)
	}
}

func TestVision_Recognize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"vision",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello World"}}]}`)
	}))
	defer srv.Close()

	v := NewVision("k", "vision", srv.URL+"/", option.WithMaxRetries(0))
	var progress []float64
	out, err := v.Recognize(context.Background(), Image{ContentType: "image/png", Data: pngBytes}, func(p float64) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if out != "Hello World" {
		t.Errorf("out = %q", out)
	}
	if len(progress) != 3 || progress[2] != 100 {
		t.Errorf("progress = %v", progress)
	}
	raw, _ := json.Marshal(body)
	if !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Errorf("request missing image data URL: %s", raw)
	}
}

func TestVision_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewVision("k", "vision", srv.URL+"/", option.WithMaxRetries(0))
	if _, err := v.Recognize(context.Background(), Image{ContentType: "image/png", Data: pngBytes}, nil); !errors.Is(err, apperr.ErrOCRFailure) {
		t.Errorf("err = %v, want ErrOCRFailure", err)
	}
}
