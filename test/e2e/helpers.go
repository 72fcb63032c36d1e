//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/govreposcrape/govsearch/internal/api/handlers"
	"github.com/govreposcrape/govsearch/internal/backend/qdrant"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/ingest"
	"github.com/govreposcrape/govsearch/internal/mcp"
	"github.com/govreposcrape/govsearch/internal/retry"
	"github.com/govreposcrape/govsearch/internal/server"
	"github.com/govreposcrape/govsearch/internal/service"
	"github.com/govreposcrape/govsearch/internal/storage"
	"github.com/govreposcrape/govsearch/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	RustFSC    *testutil.RustFSContainer
	QdrantC    *testutil.QdrantContainer
	S3Client   *storage.S3Client
	Backend    *qdrant.Backend
	Events     *events.Recorder
	Retry      *retry.Executor
	Server     *httptest.Server
	ServerURL  string
	BinaryDir  string
	HTTPClient *http.Client
}

// SetupE2EEnv starts RustFS and Qdrant and serves the full router against them
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	s3C := testutil.NewRustFSContainer(ctx, t)
	qC := testutil.NewQdrantContainer(ctx, t)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "govreposcrape-gitingest",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	backend, err := qdrant.New(qdrant.Config{
		Host:       qC.Host,
		Port:       qC.Port,
		Collection: "e2e_summaries",
	}, hashEmbedder{dims: 64})
	if err != nil {
		t.Fatalf("failed to create qdrant backend: %v", err)
	}
	if err := backend.EnsureCollection(ctx); err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}

	rec := &events.Recorder{}
	executor := retry.NewExecutor(retry.Config{MaxAttempts: 2, Delays: []time.Duration{10 * time.Millisecond}}, rec)

	svc := service.NewSearchService(
		service.NewSearchClient(backend, executor, rec, service.DefaultSlowThreshold),
		service.NewEnricher(s3Client, rec, service.EnricherConfig{CacheTTL: time.Second}),
		service.NewMapper(),
	)
	router := server.NewRouter(server.RouterConfig{
		SearchHandler: handlers.NewSearchHandler(svc, rec),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthChecker{
			"object_store": handlers.HealthFunc(s3Client.Ping),
			"backend":      backend,
		}),
		MCPHandler: mcp.NewHTTPHandler(mcp.NewServer(mcp.ServerConfig{Name: "govsearch-e2e", Version: "test"}, mcp.NewSearchTool(svc))),
		Events:     rec,
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		RustFSC:    s3C,
		QdrantC:    qC,
		S3Client:   s3Client,
		Backend:    backend,
		Events:     rec,
		Retry:      executor,
		Server:     srv,
		ServerURL:  srv.URL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Backend != nil {
		e.Backend.Close()
	}
	if e.QdrantC != nil {
		e.QdrantC.Terminate(e.Ctx)
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// ServeFeed serves repos as repos.json and returns its URL
func (e *E2ETestEnv) ServeFeed(repos []ingest.Repository) string {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(repos)
	}))
	e.T.Cleanup(feed.Close)
	return feed.URL + "/repos.json"
}

// Pipeline builds an ingestion pipeline writing to the test bucket and index
func (e *E2ETestEnv) Pipeline(feedURL string, summaries map[string]string) *ingest.Pipeline {
	return ingest.NewPipeline(ingest.PipelineConfig{
		Feed:       ingest.NewFeedClient(feedURL, e.Retry),
		Store:      e.S3Client,
		Summarizer: cannedSummarizer(summaries),
		Languages:  ingest.NewOfflineLanguageDetector(),
		Indexer:    e.Backend,
		Retry:      e.Retry,
		Events:     e.Events,
	})
}

// BuildBinaries builds the govsearch client binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "govsearch-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "govsearch"), "./cmd/govsearch")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build govsearch: %v\n%s", err, out)
	}
}

// RunGovsearch runs the govsearch CLI against the test server
func (e *E2ETestEnv) RunGovsearch(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "govsearch"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Env = append(os.Environ(), fmt.Sprintf("GOVSEARCH_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// PostSearch sends a raw body to /search and returns status, headers and body
func (e *E2ETestEnv) PostSearch(body string) (int, http.Header, []byte) {
	req, err := http.NewRequest(http.MethodPost, e.ServerURL+"/search", bytes.NewReader([]byte(body)))
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MCP-Version", "2")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("search request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}
	return resp.StatusCode, resp.Header, respBody
}

// hashEmbedder is a deterministic bag-of-words embedder so that queries
// sharing words with a summary land near it.
type hashEmbedder struct {
	dims int
}

func (h hashEmbedder) Dimensions() int { return h.dims }

func (h hashEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	vec[0] = 0.01
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		f := fnv.New32a()
		f.Write([]byte(word))
		vec[1+int(f.Sum32())%(h.dims-1)]++
	}
	return vec, nil
}

type cannedSummarizer map[string]string

func (c cannedSummarizer) Summarize(_ context.Context, repo, _ string) (*ingest.Summary, error) {
	content, ok := c[repo]
	if !ok {
		return nil, fmt.Errorf("clone of %s failed", repo)
	}
	return &ingest.Summary{
		Repository: repo,
		Content:    content,
		Files:      []ingest.FileStat{{Path: "main.go", Size: int64(len(content))}},
	}, nil
}
