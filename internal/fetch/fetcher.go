package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

// DefaultKaggleBaseURL is the Kaggle public API root.
const DefaultKaggleBaseURL = "https://www.kaggle.com/api/v1"

// ObjectGetter is the subset of the S3 client used for s3:// sources.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	KaggleUsername string
	KaggleKey      string
	KaggleBaseURL  string

	S3Region string
	// S3 overrides the client built from the default AWS config.
	S3 ObjectGetter

	// Progress receives a download progress bar; nil disables it.
	Progress io.Writer
	Logger   *zap.Logger
}

// Fetcher downloads datasets with bounded retries.
type Fetcher struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	kaggleUser       string
	kaggleKey        string
	kaggleBaseURL    string
	s3Region         string
	s3               ObjectGetter
	progress         io.Writer
	log              *zap.Logger
}

// New returns a Fetcher. Retries default to 3 attempts with a
// 500ms base delay doubling up to 4s.
func New(opt Options) *Fetcher {
	if opt.HTTPTimeout <= 0 {
		opt.HTTPTimeout = 10 * time.Minute
	}
	if opt.RetryMaxAttempts <= 0 {
		opt.RetryMaxAttempts = 3
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = 500 * time.Millisecond
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 4 * time.Second
	}
	if opt.KaggleBaseURL == "" {
		opt.KaggleBaseURL = DefaultKaggleBaseURL
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		httpClient:       &http.Client{Timeout: opt.HTTPTimeout},
		retryMaxAttempts: opt.RetryMaxAttempts,
		retryBaseDelay:   opt.RetryBaseDelay,
		retryMaxDelay:    opt.RetryMaxDelay,
		kaggleUser:       opt.KaggleUsername,
		kaggleKey:        opt.KaggleKey,
		kaggleBaseURL:    strings.TrimRight(opt.KaggleBaseURL, "/"),
		s3Region:         opt.S3Region,
		s3:               opt.S3,
		progress:         opt.Progress,
		log:              log,
	}
}

// Request names what to fetch and where to cache it.
type Request struct {
	Source string
	// DataDir is the cache directory.
	DataDir string
	// File is the CSV wanted from the source; required when an archive holds
	// several CSV files.
	File string
	// Force re-downloads even when a cached copy exists.
	Force bool
}

// Result describes a fetched dataset.
type Result struct {
	Source Source
	// Path is the CSV to load.
	Path string
	// Downloaded is false when the cache was reused.
	Downloaded bool
	Bytes      int64
	// Extracted lists files unpacked from an archive.
	Extracted []string
}

// Fetch makes the dataset available locally and returns the CSV path.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	src, err := ParseSource(req.Source)
	if err != nil {
		return nil, err
	}
	if req.DataDir == "" {
		req.DataDir = "."
	}
	res := &Result{Source: src}

	if req.File != "" && !req.Force {
		if cached := filepath.Join(req.DataDir, req.File); utils.FileExists(cached) {
			f.log.Info("using cached dataset", zap.String("path", cached))
			res.Path = cached
			return res, nil
		}
	}
	if err := utils.EnsureDir(req.DataDir); err != nil {
		return nil, &dataset.IOError{Path: req.DataDir, Err: err}
	}

	var local string
	if src.Kind == SourceLocal {
		local = src.Path
		if !utils.FileExists(local) {
			return nil, &dataset.IOError{Path: local, Err: os.ErrNotExist}
		}
	} else {
		local = filepath.Join(req.DataDir, src.FileName())
		if req.Force || !utils.FileExists(local) {
			n, err := f.download(ctx, src, local)
			if err != nil {
				return nil, err
			}
			res.Downloaded, res.Bytes = true, n
		} else {
			f.log.Info("using cached download", zap.String("path", local))
		}
	}

	zipped, err := isZip(local)
	if err != nil {
		return nil, err
	}
	if !zipped {
		if req.File != "" && filepath.Base(local) != req.File {
			return nil, fmt.Errorf("source %s is %s, not %s", src, filepath.Base(local), req.File)
		}
		res.Path = local
		return res, nil
	}

	res.Extracted, err = extractCSV(local, req.DataDir, req.Force || res.Downloaded)
	if err != nil {
		return nil, err
	}
	f.log.Debug("archive extracted", zap.String("archive", local), zap.Strings("files", res.Extracted))
	res.Path, err = pick(res.Extracted, req.File)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", local, err)
	}
	return res, nil
}

func pick(files []string, want string) (string, error) {
	if want != "" {
		for _, p := range files {
			if filepath.Base(p) == want {
				return p, nil
			}
		}
		return "", fmt.Errorf("archive has no file %q (contains: %s)", want, names(files))
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("archive contains no CSV files")
	case 1:
		return files[0], nil
	}
	return "", fmt.Errorf("archive contains %d CSV files (%s); set dataset_file", len(files), names(files))
}

func names(files []string) string {
	out := make([]string, len(files))
	for i, p := range files {
		out[i] = filepath.Base(p)
	}
	return strings.Join(out, ", ")
}

// download writes src to dst via a temp file so an interrupted transfer never
// leaves a truncated cache entry behind.
func (f *Fetcher) download(ctx context.Context, src Source, dst string) (int64, error) {
	tmp := dst + ".part"
	defer os.Remove(tmp)

	var n int64
	var err error
	switch src.Kind {
	case SourceHTTP:
		n, err = f.getHTTP(ctx, src.URL, nil, tmp)
	case SourceKaggle:
		n, err = f.getKaggle(ctx, src, tmp)
	case SourceS3:
		n, err = f.getS3(ctx, src, tmp)
	default:
		err = fmt.Errorf("cannot download source kind %q", src.Kind)
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return 0, &dataset.IOError{Path: dst, Err: err}
	}
	f.log.Info("dataset downloaded", zap.String("source", src.Raw), zap.String("path", dst), zap.Int64("bytes", n))
	return n, nil
}

// writeBody streams r into path, drawing a progress bar when configured.
func (f *Fetcher) writeBody(r io.Reader, size int64, label, path string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, &dataset.IOError{Path: path, Err: err}
	}
	var w io.Writer = out
	if f.progress != nil {
		if size <= 0 {
			size = -1
		}
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionSetDescription("downloading "+label),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}
	n, err := io.Copy(w, r)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = &dataset.IOError{Path: path, Err: cerr}
	}
	return n, err
}
