package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// DefaultPinPath is the pin endpoint of a generic pinning service.
// Pinata uses "/pinning/pinFileToIPFS".
const DefaultPinPath = "/pin"

// HTTPStore pins bundles through a multipart HTTP pinning service.
type HTTPStore struct {
	baseURL    string
	pinPath    string
	token      string
	httpClient *http.Client
}

// NewHTTPStore creates an HTTPStore. When token is non-empty it is sent as
// a bearer token. A nil httpClient uses a client with no timeout.
func NewHTTPStore(baseURL, pinPath, token string, httpClient *http.Client) *HTTPStore {
	if pinPath == "" {
		pinPath = DefaultPinPath
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pinPath:    pinPath,
		token:      token,
		httpClient: httpClient,
	}
}

type pinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues"`
}

// Pin uploads every blob and the metadata document under a common "files/"
// directory so they resolve under the returned identifier.
func (s *HTTPStore) Pin(ctx context.Context, b *Bundle) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, blob := range b.Blobs {
		if err := writeFilePart(mw, blob.Name, blob.MediaType, blob.Data); err != nil {
			return "", &model.UploadError{Reason: "encode request", Err: err}
		}
	}
	if err := writeFilePart(mw, MetadataName, "application/json", b.Metadata); err != nil {
		return "", &model.UploadError{Reason: "encode request", Err: err}
	}

	meta, err := json.Marshal(pinMetadata{
		Name:      b.Name,
		KeyValues: map[string]string{"type": b.Kind, "timestamp": b.Timestamp},
	})
	if err != nil {
		return "", &model.UploadError{Reason: "encode request", Err: err}
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", &model.UploadError{Reason: "encode request", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &model.UploadError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+s.pinPath, &buf)
	if err != nil {
		return "", &model.UploadError{Reason: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &model.UploadError{Reason: "performing request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.UploadError{Reason: "reading response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.UploadError{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, errorMessage(body))}
	}

	var out struct {
		ContentID string `json:"contentId"`
		IpfsHash  string `json:"IpfsHash"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &model.UploadError{Reason: "decoding response", Err: err}
	}
	if out.ContentID != "" {
		return out.ContentID, nil
	}
	if out.IpfsHash != "" {
		return out.IpfsHash, nil
	}
	return "", &model.UploadError{Reason: "response has no content identifier"}
}

func writeFilePart(mw *multipart.Writer, name, mediaType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="files/%s"`, escapeQuotes(name)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// errorMessage extracts a message from a JSON error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch v := e.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if r, ok := v["reason"].(string); ok {
				return r
			}
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}
