package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/upashthiti/upashthiti/internal/detector"
	"github.com/upashthiti/upashthiti/internal/ledger"
	"github.com/upashthiti/upashthiti/internal/recognizer"
	"github.com/upashthiti/upashthiti/internal/registry"
)

const testDim = 512

// fakeDetector serves canned detection results in place of the InsightFace server.
type fakeDetector struct {
	faces []detector.Face
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.faces, nil
}

func (f *fakeDetector) Ready(ctx context.Context) error {
	return f.err
}

// newTestComponents builds a recognition service over temp-file stores.
func newTestComponents(t *testing.T, det detector.Detector) (*recognizer.Service, *registry.Registry, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "embeddings_db.json"), testDim)
	led := ledger.New(filepath.Join(dir, "attendance.csv"))
	return recognizer.New(det, reg, led, 0.6), reg, led
}

// testEmbedding builds a 512-dim embedding with a single 1.0 at the given index.
func testEmbedding(index int) []float32 {
	emb := make([]float32, testDim)
	emb[index] = 1
	return emb
}

// testImageBytes produces a JPEG that passes image validation.
func testImageBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartRequest builds a POST request with form values and image files
// under the given field name.
func multipartRequest(t *testing.T, target string, values map[string]string, fileField string, files ...[]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range values {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	for _, data := range files {
		part, err := writer.CreateFormFile(fileField, "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
