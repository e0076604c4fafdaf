package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// mockStore records pinned bundles and returns a fixed id.
type mockStore struct {
	bundles []*Bundle
	cid     string
	err     error
}

func (m *mockStore) Pin(_ context.Context, b *Bundle) (string, error) {
	m.bundles = append(m.bundles, b)
	return m.cid, m.err
}

// fakePutter is an in-memory S3 client.
type fakePutter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func fixedClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestValidateBlob(t *testing.T) {
	for _, tc := range []struct {
		name  string
		blob  Blob
		valid bool
	}{
		{"primary ok", Blob{Name: "a.bin", Data: []byte("x"), Role: RolePrimary}, true},
		{"primary at limit", Blob{Name: "a.bin", Data: make([]byte, MaxPrimaryBytes), Role: RolePrimary}, true},
		{"primary over limit", Blob{Name: "a.bin", Data: make([]byte, MaxPrimaryBytes+1), Role: RolePrimary}, false},
		{"image png", Blob{Name: "a.png", Data: []byte("x"), MediaType: "image/png", Role: RoleImage}, true},
		{"image gif rejected", Blob{Name: "a.gif", Data: []byte("x"), MediaType: "image/gif", Role: RoleImage}, false},
		{"image over limit", Blob{Name: "a.png", Data: make([]byte, MaxImageBytes+1), MediaType: "image/png", Role: RoleImage}, false},
		{"document over limit", Blob{Name: "l.pdf", Data: make([]byte, MaxDocumentBytes+1), Role: RoleDocument}, false},
		{"empty", Blob{Name: "a.bin", Role: RolePrimary}, false},
		{"no name", Blob{Data: []byte("x"), Role: RolePrimary}, false},
		{"metadata role not uploadable", Blob{Name: "m", Data: []byte("x"), Role: RoleMetadata}, false},
	} {
		err := ValidateBlob(tc.blob)
		if tc.valid && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.valid {
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("%s: want *ValidationError, got %v", tc.name, err)
			}
		}
	}
}

func TestValidateBlob_NamesRole(t *testing.T) {
	err := ValidateBlob(Blob{Name: "a.gif", Data: []byte("x"), MediaType: "image/gif", Role: RoleImage})
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field() != "image" {
		t.Errorf("err = %v, want field image", err)
	}
}

func TestUpload_ValidationBeforeNetwork(t *testing.T) {
	store := &mockStore{cid: "cid"}
	u := NewUploader(store, fixedClock(), nil)
	_, err := u.Upload(context.Background(), []Blob{{Name: "big", Data: make([]byte, MaxPrimaryBytes+1), Role: RolePrimary}}, nil)
	if !model.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(store.bundles) != 0 {
		t.Error("store must not be called on validation failure")
	}
}

func TestUpload_MetadataHasTimestamp(t *testing.T) {
	store := &mockStore{cid: "QmTest"}
	u := NewUploader(store, fixedClock(), nil)
	cid, err := u.Upload(context.Background(),
		[]Blob{{Name: "art.bin", Data: []byte("hello world!"), Role: RolePrimary}},
		map[string]any{"title": "My First IP", "type": "ip-registration"})
	if err != nil {
		t.Fatal(err)
	}
	if cid != "QmTest" {
		t.Errorf("cid = %q", cid)
	}
	b := store.bundles[0]
	want := `{"timestamp":"2026-03-01T12:00:00Z","title":"My First IP","type":"ip-registration"}`
	if string(b.Metadata) != want {
		t.Errorf("metadata = %s\nwant %s", b.Metadata, want)
	}
	if b.Name != "My First IP" || b.Kind != "ip-registration" {
		t.Errorf("bundle name/kind = %q/%q", b.Name, b.Kind)
	}
}

func TestUpload_StoreErrorWrapped(t *testing.T) {
	u := NewUploader(&mockStore{err: errors.New("boom")}, fixedClock(), nil)
	_, err := u.Upload(context.Background(), []Blob{{Name: "a", Data: []byte("x"), Role: RolePrimary}}, nil)
	var ue *model.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UploadError", err)
	}
}

func TestUpload_CancelledContext(t *testing.T) {
	store := &mockStore{cid: "x"}
	u := NewUploader(store, fixedClock(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := u.Upload(ctx, []Blob{{Name: "a", Data: []byte("x"), Role: RolePrimary}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(store.bundles) != 0 {
		t.Error("store called after cancellation")
	}
}

// Identical bytes must not produce identical identifiers: the metadata
// timestamp makes every upload distinct.
func TestUpload_IdenticalBytesDifferentIDs(t *testing.T) {
	clk := fixedClock()
	store := &S3Store{client: &fakePutter{}, bucket: "b", prefix: "content"}
	u := NewUploader(store, clk, nil)
	blobs := []Blob{{Name: "same.bin", Data: []byte("identical bytes"), Role: RolePrimary}}

	first, err := u.Upload(context.Background(), blobs, map[string]any{"title": "x"})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Millisecond)
	second, err := u.Upload(context.Background(), blobs, map[string]any{"title": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("two uploads produced the same id %q", first)
	}
}

func TestS3Store_Layout(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Store{client: putter, bucket: "b", prefix: "content"}
	b := &Bundle{
		Blobs:    []Blob{{Name: "img.png", Data: []byte("png"), MediaType: "image/png"}},
		Metadata: []byte(`{"timestamp":"t"}`),
	}
	cid, err := store.Pin(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cid, "b") || len(cid) != 65 {
		t.Errorf("cid = %q", cid)
	}
	if _, ok := putter.objects["content/"+cid+"/img.png"]; !ok {
		t.Errorf("image object missing: %v", putter.objects)
	}
	if got := string(putter.objects["content/"+cid+"/metadata.json"]); got != `{"timestamp":"t"}` {
		t.Errorf("metadata object = %q", got)
	}
}

func TestS3Store_PutError(t *testing.T) {
	store := &S3Store{client: &fakePutter{err: errors.New("denied")}, bucket: "b"}
	_, err := store.Pin(context.Background(), &Bundle{Metadata: []byte("{}")})
	var ue *model.UploadError
	if !errors.As(err, &ue) {
		t.Errorf("err = %v, want *UploadError", err)
	}
}

func TestHTTPStore_Pin(t *testing.T) {
	var (
		gotAuth  string
		gotPath  string
		files    = map[string]string{}
		metadata string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(p)
			switch p.FormName() {
			case "file":
				// Part.FileName strips directories; read the raw header.
				_, cd, _ := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
				files[cd["filename"]] = string(data)
			case "pinataMetadata":
				metadata = string(data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"IpfsHash":"QmPinned","PinSize":12}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "/pinning/pinFileToIPFS", "jwt-token", nil)
	cid, err := store.Pin(context.Background(), &Bundle{
		Name:      "My First IP",
		Kind:      "ip-registration",
		Timestamp: "2026-03-01T12:00:00Z",
		Blobs:     []Blob{{Name: "art.bin", Data: []byte("hello world!")}},
		Metadata:  []byte(`{"title":"My First IP"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cid != "QmPinned" {
		t.Errorf("cid = %q", cid)
	}
	if gotAuth != "Bearer jwt-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/pinning/pinFileToIPFS" {
		t.Errorf("path = %q", gotPath)
	}
	if files["files/art.bin"] != "hello world!" {
		t.Errorf("files = %v", files)
	}
	if files["files/metadata.json"] != `{"title":"My First IP"}` {
		t.Errorf("metadata file = %q", files["files/metadata.json"])
	}
	var pm struct {
		Name      string            `json:"name"`
		KeyValues map[string]string `json:"keyvalues"`
	}
	if err := json.Unmarshal([]byte(metadata), &pm); err != nil {
		t.Fatalf("pinataMetadata: %v", err)
	}
	if pm.Name != "My First IP" || pm.KeyValues["type"] != "ip-registration" || pm.KeyValues["timestamp"] == "" {
		t.Errorf("pinataMetadata = %+v", pm)
	}
}

func TestHTTPStore_ContentIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contentId":"bafy123"}`))
	}))
	defer srv.Close()

	cid, err := NewHTTPStore(srv.URL, "", "", nil).Pin(context.Background(), &Bundle{Metadata: []byte("{}")})
	if err != nil || cid != "bafy123" {
		t.Errorf("cid = %q, err = %v", cid, err)
	}
}

func TestHTTPStore_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"reason":"INVALID_CREDENTIALS"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL, "", "bad", nil).Pin(context.Background(), &Bundle{Metadata: []byte("{}")})
	var ue *model.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UploadError", err)
	}
	if !strings.Contains(ue.Reason, "401") || !strings.Contains(ue.Reason, "INVALID_CREDENTIALS") {
		t.Errorf("reason = %q", ue.Reason)
	}
}

func TestDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Digest([]byte("abc")); got != want {
		t.Errorf("Digest = %s", got)
	}
}

func TestGatewayURL(t *testing.T) {
	if got := GatewayURL("https://gateway.pinata.cloud/", "Qm1", ""); got != "https://gateway.pinata.cloud/ipfs/Qm1" {
		t.Errorf("got %q", got)
	}
	if got := GatewayURL("https://gw", "Qm1", "metadata.json"); got != "https://gw/ipfs/Qm1/metadata.json" {
		t.Errorf("got %q", got)
	}
}

func TestMetadataDocument_Canonical(t *testing.T) {
	doc, err := MetadataDocument(map[string]any{"b": 1, "a": "x", "timestamp": "overridden"}, "T")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(doc, []byte(`{"a":"x","b":1,"timestamp":"T"}`)) {
		t.Errorf("doc = %s", doc)
	}
}
