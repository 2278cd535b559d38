package publishing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/fileutil"
	"github.com/relicta-tech/indra/internal/pom"
	"github.com/relicta-tech/indra/internal/publish"
)

// Artifact is what a publish task uploads: the POM and, when the build was
// signed, its detached signature.
type Artifact struct {
	Coordinates pom.Coordinates
	POM         []byte
	Signature   []byte
}

// Path returns the repository-relative path of the artifact file with the
// given extension, using the Maven layout.
func (a Artifact) Path(ext string) string {
	c := a.Coordinates
	file := fmt.Sprintf("%s-%s.%s", c.ArtifactID, c.Version, ext)
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version, file)
}

// files returns the artifact's files keyed by repository path.
func (a Artifact) files() map[string][]byte {
	files := map[string][]byte{a.Path("pom"): a.POM}
	if len(a.Signature) > 0 {
		files[a.Path("pom.asc")] = a.Signature
	}
	return files
}

// Deployer uploads an artifact to a repository.
type Deployer interface {
	Deploy(ctx context.Context, artifact Artifact) error
}

// DeployerFactory creates the deployer for an eligible remote repository.
type DeployerFactory func(repo publish.RemoteRepository) Deployer

// LocalRepository is a Maven repository on the local file system.
type LocalRepository struct {
	Root string
}

// DefaultLocalRepository returns ~/.m2/repository.
func DefaultLocalRepository() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".m2", "repository")
	}
	return filepath.Join(home, ".m2", "repository")
}

// Deploy writes the artifact files below Root.
func (r LocalRepository) Deploy(ctx context.Context, artifact Artifact) error {
	const op = "publishing.LocalRepository.Deploy"

	for rel, data := range artifact.files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(r.Root, filepath.FromSlash(rel))
		if err := fileutil.AtomicWriteFile(dest, data, 0o644); err != nil {
			return ierrors.IOWrap(err, op, "failed to write "+rel)
		}
	}
	return nil
}

// statusError is a non-2xx response from a repository.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("PUT %s: %d %s", e.url, e.code, http.StatusText(e.code))
}

// HTTPDeployer uploads artifacts to a remote repository with HTTP PUT,
// retrying server errors with exponential backoff.
type HTTPDeployer struct {
	repo     publish.RemoteRepository
	username string
	password string
	client   *http.Client
	retrier  retry.Retry[int]
}

// HTTPOption configures an HTTPDeployer.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	client       *http.Client
	attempts     int
	initialDelay time.Duration
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = client }
}

// WithRetry sets the number of attempts and the first backoff delay.
func WithRetry(attempts int, initialDelay time.Duration) HTTPOption {
	return func(o *httpOptions) {
		o.attempts = attempts
		o.initialDelay = initialDelay
	}
}

// NewHTTPDeployer creates a deployer for repo using basic authentication.
func NewHTTPDeployer(repo publish.RemoteRepository, username, password string, opts ...HTTPOption) *HTTPDeployer {
	o := httpOptions{
		client:       &http.Client{Timeout: 60 * time.Second},
		attempts:     3,
		initialDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &HTTPDeployer{
		repo:     repo,
		username: username,
		password: password,
		client:   o.client,
		retrier: retry.New[int](retry.Config{
			MaxAttempts:   o.attempts,
			InitialDelay:  o.initialDelay,
			MaxDelay:      10 * time.Second,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryableError,
		}),
	}
}

// Deploy uploads each artifact file.
func (d *HTTPDeployer) Deploy(ctx context.Context, artifact Artifact) error {
	const op = "publishing.HTTPDeployer.Deploy"

	base := strings.TrimSuffix(d.repo.URL, "/")
	// the POM is uploaded before its signature
	paths := []string{artifact.Path("pom")}
	if len(artifact.Signature) > 0 {
		paths = append(paths, artifact.Path("pom.asc"))
	}
	files := artifact.files()

	for _, rel := range paths {
		url := base + "/" + rel
		data := files[rel]
		_, err := d.retrier.Do(ctx, func(ctx context.Context) (int, error) {
			return d.put(ctx, url, data)
		})
		if err != nil {
			return ierrors.Wrap(err, ierrors.KindIO, op, fmt.Sprintf("failed to upload to repository %s", d.repo.Name))
		}
	}
	return nil
}

func (d *HTTPDeployer) put(ctx context.Context, url string, data []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(d.username, d.password)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &statusError{url: url, code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// isRetryableError retries transport failures, rate limiting and server
// errors. Client errors such as 401 or 409 are final.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}
