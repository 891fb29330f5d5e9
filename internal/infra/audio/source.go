package audio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// maxSourceBytes bounds the size of a fetched source.
var maxSourceBytes int64 = 64 << 20

// ErrUnsupportedFormat is returned for sources that are neither mp3 nor wav.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// isRemote reports whether source is an http(s) URL.
func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ResolvePath maps a catalog audio reference to a file under baseDir.
// References are URL paths, so they are unescaped first.
func ResolvePath(baseDir, source string) (string, error) {
	p, err := url.PathUnescape(source)
	if err != nil {
		return "", errors.Wrapf(err, "invalid audio source %q", source)
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(p, "/")))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf("audio source %q escapes the base directory", source)
	}
	return filepath.Join(baseDir, rel), nil
}

// Fetch reads the whole source into memory.
func Fetch(ctx context.Context, client *http.Client, baseDir, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("track has no audio source")
	}

	if !isRemote(source) {
		p, err := ResolvePath(baseDir, source)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", p)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("failed to fetch %s: status %d", source, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", source)
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, errors.Newf("failed to read %s: larger than %d bytes", source, maxSourceBytes)
	}
	return data, nil
}

// formatOf returns the lower-cased file extension of source, without query.
func formatOf(source string) string {
	p := source
	if u, err := url.Parse(source); err == nil {
		p = u.Path
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// Decode decodes data as mp3 or wav, chosen by the source extension.
func Decode(source string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch formatOf(source) {
	case "mp3":
		s, f, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
		if err != nil {
			return nil, beep.Format{}, errors.Wrap(err, "failed to decode mp3")
		}
		return s, f, nil
	case "wav":
		s, f, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, errors.Wrap(err, "failed to decode wav")
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", source)
	}
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
