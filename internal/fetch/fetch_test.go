package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const accidentsCSV = "ID,Source,Start_Time,City,State\nA-1,Source2,2016-02-08 05:46:00,Dayton,OH\n"

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// sequenceServer answers with statuses in order (repeating the last one) and
// serves body on 2xx. It counts requests in hits.
func sequenceServer(t *testing.T, statuses []int, body []byte, hits *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(hits, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if statuses[i] == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0")
		}
		w.WriteHeader(statuses[i])
		if statuses[i] >= 200 && statuses[i] < 300 {
			_, _ = w.Write(body)
			return
		}
		_, _ = io.WriteString(w, "try later")
	}))
}

func fastFetcher(opt Options) *Fetcher {
	opt.HTTPTimeout = 2 * time.Second
	opt.RetryBaseDelay = 5 * time.Millisecond
	opt.RetryMaxDelay = 20 * time.Millisecond
	return New(opt)
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestFetchRetriesOn503(t *testing.T) {
	var hits int32
	srv := sequenceServer(t, []int{503, 429, 200}, []byte(accidentsCSV), &hits)
	dir := t.TempDir()
	var progress bytes.Buffer
	f := fastFetcher(Options{Progress: &progress})

	res, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/data/US_Accidents.csv", DataDir: dir})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 3 requests, got %d", hits)
	}
	if !res.Downloaded || res.Bytes != int64(len(accidentsCSV)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Path != filepath.Join(dir, "US_Accidents.csv") {
		t.Fatalf("unexpected path %s", res.Path)
	}
	b, _ := os.ReadFile(res.Path)
	if string(b) != accidentsCSV {
		t.Fatalf("unexpected content %q", b)
	}
	if _, err := os.Stat(res.Path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := sequenceServer(t, []int{502}, nil, &hits)
	f := fastFetcher(Options{RetryMaxAttempts: 2})
	_, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/x.csv", DataDir: t.TempDir()})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 502 {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if !strings.Contains(se.Message, "try later") {
		t.Fatalf("message not captured: %q", se.Message)
	}
	if hits != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits)
	}
}

func TestFetchDoesNotRetry404(t *testing.T) {
	var hits int32
	srv := sequenceServer(t, []int{404}, nil, &hits)
	f := fastFetcher(Options{})
	_, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/missing.csv", DataDir: t.TempDir()})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %T %v", err, err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("NotFoundError must unwrap to StatusError")
	}
	if hits != 1 {
		t.Fatalf("404 must not be retried, got %d requests", hits)
	}
}

func TestFetchReusesCache(t *testing.T) {
	var hits int32
	srv := sequenceServer(t, []int{200}, []byte(accidentsCSV), &hits)
	dir := t.TempDir()
	f := fastFetcher(Options{})
	req := Request{Source: srv.URL + "/US_Accidents.csv", DataDir: dir}

	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	res, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if res.Downloaded || hits != 1 {
		t.Fatalf("expected cache reuse, downloaded=%v hits=%d", res.Downloaded, hits)
	}

	req.File = "US_Accidents.csv"
	if res, err = f.Fetch(context.Background(), req); err != nil || res.Downloaded {
		t.Fatalf("cached named file should be reused: %v %+v", err, res)
	}

	req.Force = true
	if res, err = f.Fetch(context.Background(), req); err != nil || !res.Downloaded {
		t.Fatalf("force should re-download: %v %+v", err, res)
	}
	if hits != 2 {
		t.Fatalf("expected 2 requests after force, got %d", hits)
	}
}

func TestFetchExtractsZip(t *testing.T) {
	archive := zipOf(t, map[string]string{
		"US_Accidents_Dec21_updated.csv": accidentsCSV,
		"README.txt":                     "ignore me",
	})
	var hits int32
	srv := sequenceServer(t, []int{200}, archive, &hits)
	dir := t.TempDir()
	f := fastFetcher(Options{})
	res, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/download", DataDir: dir})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Extracted) != 1 {
		t.Fatalf("expected only the CSV to be extracted, got %v", res.Extracted)
	}
	if filepath.Base(res.Path) != "US_Accidents_Dec21_updated.csv" {
		t.Fatalf("unexpected path %s", res.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.txt")); !os.IsNotExist(err) {
		t.Fatalf("non-CSV entries must not be extracted")
	}
}

func TestFetchZipWithSeveralCSVNeedsFile(t *testing.T) {
	archive := zipOf(t, map[string]string{"a.csv": accidentsCSV, "nested/b.csv": accidentsCSV})
	var hits int32
	srv := sequenceServer(t, []int{200}, archive, &hits)
	dir := t.TempDir()
	f := fastFetcher(Options{})
	_, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/both.zip", DataDir: dir})
	if err == nil || !strings.Contains(err.Error(), "set dataset_file") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
	res, err := f.Fetch(context.Background(), Request{Source: srv.URL + "/both.zip", DataDir: dir, File: "b.csv"})
	if err != nil {
		t.Fatalf("Fetch with file: %v", err)
	}
	if res.Path != filepath.Join(dir, "b.csv") {
		t.Fatalf("unexpected path %s", res.Path)
	}
	if hits != 1 {
		t.Fatalf("archive should have been cached, got %d requests", hits)
	}
}

func TestFetchKaggleUsesBasicAuth(t *testing.T) {
	archive := zipOf(t, map[string]string{"US_Accidents.csv": accidentsCSV})
	var gotPath string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		if !ok || user != "alice" || key != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		gotPath = r.URL.Path
		_, _ = w.Write(archive)
	}))
	dir := t.TempDir()

	f := fastFetcher(Options{KaggleUsername: "alice", KaggleKey: "s3cret", KaggleBaseURL: srv.URL + "/api/v1"})
	res, err := f.Fetch(context.Background(), Request{Source: "kaggle://sobhanmoosavi/us-accidents", DataDir: dir})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/api/v1/datasets/download/sobhanmoosavi/us-accidents" {
		t.Fatalf("unexpected request path %s", gotPath)
	}
	if filepath.Base(res.Path) != "US_Accidents.csv" {
		t.Fatalf("unexpected path %s", res.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "us-accidents.zip")); err != nil {
		t.Fatalf("archive not cached: %v", err)
	}

	bad := fastFetcher(Options{KaggleUsername: "alice", KaggleKey: "wrong", KaggleBaseURL: srv.URL + "/api/v1"})
	_, err = bad.Fetch(context.Background(), Request{Source: "kaggle://sobhanmoosavi/us-accidents", DataDir: t.TempDir()})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}

	none := fastFetcher(Options{})
	if _, err := none.Fetch(context.Background(), Request{Source: "kaggle://a/b", DataDir: t.TempDir()}); err == nil || !strings.Contains(err.Error(), "kaggle credentials missing") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string]string
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestFetchS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"datasets/raw/US_Accidents.csv": accidentsCSV}}
	f := fastFetcher(Options{S3: fake})
	dir := t.TempDir()
	res, err := f.Fetch(context.Background(), Request{Source: "s3://datasets/raw/US_Accidents.csv", DataDir: dir})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Path != filepath.Join(dir, "US_Accidents.csv") || res.Bytes != int64(len(accidentsCSV)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := f.Fetch(context.Background(), Request{Source: "s3://datasets/raw/missing.csv", DataDir: dir}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "local.csv")
	if err := os.WriteFile(p, []byte(accidentsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	f := fastFetcher(Options{})
	res, err := f.Fetch(context.Background(), Request{Source: p, DataDir: filepath.Join(dir, "cache")})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Path != p || res.Downloaded {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := f.Fetch(context.Background(), Request{Source: filepath.Join(dir, "nope.csv"), DataDir: dir}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	var hits int32
	srv := sequenceServer(t, []int{503}, nil, &hits)
	f := New(Options{RetryMaxAttempts: 5, RetryBaseDelay: time.Second, RetryMaxDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := f.Fetch(ctx, Request{Source: srv.URL + "/slow.csv", DataDir: t.TempDir()})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Fatalf("backoff did not observe cancellation")
	}
}

func TestParseSource(t *testing.T) {
	cases := []struct {
		in   string
		kind SourceKind
		name string
	}{
		{"https://example.com/files/US_Accidents.csv?dl=1", SourceHTTP, "US_Accidents.csv"},
		{"kaggle://sobhanmoosavi/us-accidents", SourceKaggle, "us-accidents.zip"},
		{"s3://bucket/path/to/data.zip", SourceS3, "data.zip"},
		{"./data/US_Accidents.csv", SourceLocal, "US_Accidents.csv"},
	}
	for _, c := range cases {
		s, err := ParseSource(c.in)
		if err != nil {
			t.Fatalf("ParseSource(%q): %v", c.in, err)
		}
		if s.Kind != c.kind || s.FileName() != c.name {
			t.Fatalf("ParseSource(%q) = %s/%s, want %s/%s", c.in, s.Kind, s.FileName(), c.kind, c.name)
		}
	}
	for _, bad := range []string{"", "kaggle://only-owner", "s3://bucket", "s3://bucket/", "https://"} {
		if _, err := ParseSource(bad); err == nil {
			t.Fatalf("ParseSource(%q) should fail", bad)
		}
	}
}
