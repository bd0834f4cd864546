package registryclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
)

// dockerContentDigestHeader is the header an OCI-conformant registry is
// required to return on a manifest GET.
const dockerContentDigestHeader = "Docker-Content-Digest"

// HTTPClient is the engine's concrete Registry Blob Client implementation
// for HTTPS OCI distribution endpoints.
//
// Hand-builds the four requests against
// "/v2/<repo>/manifests/<ref>" and "/v2/<repo>/blobs/<digest>"
// endpoints, using its own http.Client over a hashicorp/go-cleanhttp
// pooled transport wrapped in otelhttp so every request gets its own
// span, and accepting a
// [golang.org/x/oauth2.TokenSource] as its bearer-token credential
// collaborator alongside static basic auth.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string // scheme://host
	repository string
	tokenSrc   oauth2.TokenSource
	basicAuth  string // pre-encoded "Basic <base64>", set by SetBasicAuth
}

// NewHTTPClient constructs a client for a given registry host and
// repository. insecure selects http instead of https.
func NewHTTPClient(registryHost, repository string, insecure bool) *HTTPClient {
	scheme := "https"
	if insecure {
		scheme = "http"
	}
	return &HTTPClient{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())},
		baseURL:    fmt.Sprintf("%s://%s", scheme, registryHost),
		repository: repository,
	}
}

var _ BlobClient = (*HTTPClient)(nil)

// SetBasicAuth configures static basic-auth credentials.
func (c *HTTPClient) SetBasicAuth(username, password string) {
	c.basicAuth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// SetTokenSource configures a bearer-token credential provider.
// Acquisition and refresh happen inside the TokenSource implementation;
// this client only reads the current token per request.
func (c *HTTPClient) SetTokenSource(src oauth2.TokenSource) {
	c.tokenSrc = src
}

// LoadDockerCredentials looks up stored basic-auth credentials for
// registryHost from the local Docker credential store via
// oras.land/oras-go/v2/registry/remote/credentials.
func (c *HTTPClient) LoadDockerCredentials(ctx context.Context, registryHost string) error {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return bicepdiag.New(bicepdiag.Unhandled, err, "opening docker credential store")
	}
	creds, err := store.Get(ctx, registryHost)
	if err != nil {
		return bicepdiag.New(bicepdiag.Unhandled, err, "loading credentials for %s", registryHost)
	}
	if creds.Password != "" {
		c.SetBasicAuth(creds.Username, creds.Password)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) error {
	switch {
	case c.tokenSrc != nil:
		tok, err := c.tokenSrc.Token()
		if err != nil {
			return bicepdiag.New(bicepdiag.Transport, err, "acquiring registry bearer token")
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	case c.basicAuth != "":
		req.Header.Set("Authorization", c.basicAuth)
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	if err := c.authorize(req); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, bicepdiag.New(bicepdiag.Transport, err, "%s %s", req.Method, req.URL)
	}
	return resp, nil
}

func (c *HTTPClient) manifestURL(reference string) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL, c.repository, reference)
}

func (c *HTTPClient) blobURL(digest ocidigest.Digest) string {
	return fmt.Sprintf("%s/v2/%s/blobs/%s", c.baseURL, c.repository, digest)
}

func (c *HTTPClient) blobUploadURL() string {
	return fmt.Sprintf("%s/v2/%s/blobs/uploads/", c.baseURL, c.repository)
}

func classifyStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return bicepdiag.New(bicepdiag.ModuleNotFound, nil, "registry returned 404")
	case http.StatusForbidden, http.StatusUnauthorized:
		return bicepdiag.New(bicepdiag.Transport, nil, "registry returned %s", resp.Status)
	default:
		return bicepdiag.New(bicepdiag.Transport, nil, "registry returned %s", resp.Status)
	}
}

func (c *HTTPClient) DownloadManifest(ctx context.Context, reference string, acceptMediaType string) (ManifestResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL(reference), nil)
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.Unhandled, err, "building manifest request")
	}
	req.Header.Set("Accept", acceptMediaType)

	resp, err := c.do(req)
	if err != nil {
		return ManifestResult{}, err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return ManifestResult{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.Transport, err, "reading manifest body")
	}

	headerDigest, err := ocidigest.ParseDigest(resp.Header.Get(dockerContentDigestHeader))
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.InvalidManifest, err, "missing or invalid %s header", dockerContentDigestHeader)
	}

	return ManifestResult{DigestHeader: headerDigest, Body: body}, nil
}

func (c *HTTPClient) DownloadBlob(ctx context.Context, digest ocidigest.Digest) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobURL(digest), nil)
	if err != nil {
		return nil, bicepdiag.New(bicepdiag.Unhandled, err, "building blob request")
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) UploadBlob(ctx context.Context, r io.Reader) (ocidigest.Digest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", bicepdiag.New(bicepdiag.Unhandled, err, "reading blob for upload")
	}
	digestVal := ocidigest.FromBytes(data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.blobUploadURL(), nil)
	if err != nil {
		return "", bicepdiag.New(bicepdiag.Unhandled, err, "building blob upload request")
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	uploadURL := resp.Header.Get("Location")
	if uploadURL == "" {
		return "", bicepdiag.New(bicepdiag.Transport, nil, "registry did not return an upload location")
	}
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", bicepdiag.New(bicepdiag.Unhandled, err, "building blob put request")
	}
	putReq.Header.Set("Content-Type", "application/octet-stream")
	putResp, err := c.do(putReq)
	if err != nil {
		return "", err
	}
	defer putResp.Body.Close()
	if err := classifyStatus(putResp); err != nil {
		return "", err
	}

	return digestVal, nil
}

func (c *HTTPClient) UploadManifest(ctx context.Context, body []byte, mediaType string, tag string) error {
	ref := tag
	if ref == "" {
		ref = ocidigest.FromBytes(body).String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.manifestURL(ref), bytes.NewReader(body))
	if err != nil {
		return bicepdiag.New(bicepdiag.Unhandled, err, "building manifest upload request")
	}
	if mediaType != ociv1.MediaTypeImageManifest {
		return bicepdiag.New(bicepdiag.Unhandled, nil, "unsupported manifest media type %q", mediaType)
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classifyStatus(resp)
}
