// Package fetch downloads the accidents dataset into a local cache directory.
package fetch

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// SourceKind is where a dataset comes from.
type SourceKind string

const (
	SourceHTTP   SourceKind = "http"
	SourceKaggle SourceKind = "kaggle"
	SourceS3     SourceKind = "s3"
	SourceLocal  SourceKind = "local"
)

// Source is a parsed dataset location.
type Source struct {
	Kind SourceKind
	// Raw is the string the source was parsed from.
	Raw string
	// URL for http sources.
	URL string
	// Owner and Dataset for kaggle://owner/dataset.
	Owner   string
	Dataset string
	// Bucket and Key for s3://bucket/key.
	Bucket string
	Key    string
	// Path for local files.
	Path string
}

// ParseSource recognises http(s) URLs, kaggle://owner/dataset,
// s3://bucket/key and local paths.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Source{}, fmt.Errorf("dataset source is empty (set dataset_source or pass --source)")
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return Source{}, fmt.Errorf("invalid dataset URL %q", s)
		}
		return Source{Kind: SourceHTTP, Raw: s, URL: s}, nil
	case strings.HasPrefix(lower, "kaggle://"):
		rest := strings.Trim(s[len("kaggle://"):], "/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Source{}, fmt.Errorf("invalid kaggle source %q (want kaggle://owner/dataset)", s)
		}
		return Source{Kind: SourceKaggle, Raw: s, Owner: parts[0], Dataset: parts[1]}, nil
	case strings.HasPrefix(lower, "s3://"):
		rest := s[len("s3://"):]
		i := strings.Index(rest, "/")
		if i <= 0 || i == len(rest)-1 {
			return Source{}, fmt.Errorf("invalid s3 source %q (want s3://bucket/key)", s)
		}
		return Source{Kind: SourceS3, Raw: s, Bucket: rest[:i], Key: rest[i+1:]}, nil
	}
	return Source{Kind: SourceLocal, Raw: s, Path: s}, nil
}

// FileName is the name the downloaded object is cached under.
func (s Source) FileName() string {
	switch s.Kind {
	case SourceKaggle:
		return s.Dataset + ".zip"
	case SourceS3:
		return path.Base(s.Key)
	case SourceHTTP:
		if u, err := url.Parse(s.URL); err == nil {
			if b := path.Base(u.Path); b != "/" && b != "." && b != "" {
				return b
			}
		}
		return "dataset"
	}
	return filepath.Base(s.Path)
}

func (s Source) String() string { return s.Raw }
