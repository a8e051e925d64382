package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/loaders"
)

// DocumentKind is the category of an ingestion source.
type DocumentKind int

const (
	KindSite DocumentKind = iota
	KindVideo
	KindPdf
	KindCsv
	KindText
)

// kinds lists the supported kinds in menu order.
var kinds = []DocumentKind{KindSite, KindVideo, KindPdf, KindCsv, KindText}

// Kinds returns the supported document kinds.
func Kinds() []DocumentKind {
	return append([]DocumentKind(nil), kinds...)
}

// String returns the label that is embedded in the grounding prompt.
func (k DocumentKind) String() string {
	switch k {
	case KindSite:
		return "Site"
	case KindVideo:
		return "Youtube"
	case KindPdf:
		return "PDF"
	case KindCsv:
		return "CSV"
	case KindText:
		return "TXT"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ext is the temp file suffix used for binary kinds.
func (k DocumentKind) ext() string {
	switch k {
	case KindPdf:
		return ".pdf"
	case KindCsv:
		return ".csv"
	case KindText:
		return ".txt"
	}
	return ""
}

// isFile reports whether the kind is loaded from uploaded bytes.
func (k DocumentKind) isFile() bool {
	return k.ext() != ""
}

// ParseKind accepts a kind label or a lower case alias.
func ParseKind(s string) (k DocumentKind, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "site", "url", "web":
		return KindSite, nil
	case "youtube", "video":
		return KindVideo, nil
	case "pdf":
		return KindPdf, nil
	case "csv":
		return KindCsv, nil
	case "txt", "text":
		return KindText, nil
	}
	return -1, fmt.Errorf("unknown document kind %q", s)
}

// SourceDescriptor carries what a loader needs for one kind: a URL
// for Site, a video id for Youtube, or raw bytes and the original
// filename for PDF, CSV and TXT.
type SourceDescriptor struct {
	URL      string
	VideoID  string
	Data     []byte
	Filename string
}

// SiteSource describes a web page.
func SiteSource(url string) *SourceDescriptor {
	return &SourceDescriptor{URL: url}
}

// VideoSource describes a Youtube video by id.
func VideoSource(id string) *SourceDescriptor {
	return &SourceDescriptor{VideoID: id}
}

// FileSource describes uploaded bytes.
func FileSource(filename string, data []byte) *SourceDescriptor {
	return &SourceDescriptor{Filename: filename, Data: data}
}

// payload is the descriptor content relevant to kind.
func (d *SourceDescriptor) payload(kind DocumentKind) []byte {
	switch kind {
	case KindSite:
		return []byte(d.URL)
	case KindVideo:
		return []byte(d.VideoID)
	}
	return d.Data
}

// Extractor turns a source string into text.  For Site the source is
// a URL, for Youtube a video id, and for the file kinds a path.
type Extractor interface {
	Extract(ctx context.Context, src string) (string, error)
}

// Loader maps a document kind and descriptor to normalized text.
type Loader struct {
	Site  Extractor
	Video Extractor
	Pdf   Extractor
	Csv   Extractor
	Text  Extractor
	// TmpDir is where uploaded bytes are materialized; empty means
	// os.TempDir().
	TmpDir string
	// Cache, if set, short-circuits repeated loads of file kinds.
	// Sites and videos are always fetched.
	Cache *DocCache
}

// NewLoader returns a Loader wired to the default extractors.
func NewLoader() *Loader {
	return &Loader{
		Site:  &loaders.Site{},
		Video: &loaders.Youtube{Languages: []string{"pt", "en"}},
		Pdf:   loaders.Pdf{},
		Csv:   loaders.Csv{},
		Text:  loaders.Text{},
	}
}

// Load returns the text of the described document.  An unrecognized
// kind yields empty text and no error.  Extraction failures wrap
// ErrLoaderFailure and are not retried.
func (l *Loader) Load(ctx context.Context, kind DocumentKind, desc *SourceDescriptor) (text string, err error) {
	if desc == nil {
		return "", ErrMissingDocument
	}
	var ex Extractor
	switch kind {
	case KindSite:
		ex = l.Site
	case KindVideo:
		ex = l.Video
	case KindPdf:
		ex = l.Pdf
	case KindCsv:
		ex = l.Csv
	case KindText:
		ex = l.Text
	default:
		Debug("unrecognized document kind %v, loading empty text", kind)
		return "", nil
	}
	if ex == nil {
		return "", fmt.Errorf("%w: no extractor for %v", ErrLoaderFailure, kind)
	}

	if l.Cache != nil {
		cached, ok := l.Cache.Get(kind, desc)
		if ok {
			Debug("cache hit for %v document", kind)
			return cached, nil
		}
	}

	switch kind {
	case KindSite:
		text, err = ex.Extract(ctx, desc.URL)
	case KindVideo:
		text, err = ex.Extract(ctx, desc.VideoID)
	default:
		text, err = l.extractFile(ctx, ex, kind, desc)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v: %w", ErrLoaderFailure, kind, err)
	}

	if l.Cache != nil {
		perr := l.Cache.Put(kind, desc, text)
		if perr != nil {
			Debug("not caching %v document: %v", kind, perr)
		}
	}
	return text, nil
}

// extractFile writes the descriptor's bytes to a temp file, runs ex
// on its path, and removes the file whether or not extraction
// succeeded.
func (l *Loader) extractFile(ctx context.Context, ex Extractor, kind DocumentKind, desc *SourceDescriptor) (text string, err error) {
	defer Return(&err)
	suffix := filepath.Ext(desc.Filename)
	if suffix == "" {
		suffix = kind.ext()
	}
	fh, err := os.CreateTemp(l.TmpDir, "oracle-*"+suffix)
	Ck(err)
	tmpfn := fh.Name()
	defer os.Remove(tmpfn)
	_, err = fh.Write(desc.Data)
	if err != nil {
		fh.Close()
		Ck(err)
	}
	err = fh.Close()
	Ck(err)
	Debug("extracting %v from %s (%d bytes)", kind, tmpfn, len(desc.Data))
	text, err = ex.Extract(ctx, tmpfn)
	Ck(err)
	return
}
