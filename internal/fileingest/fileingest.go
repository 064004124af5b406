package fileingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"filetriage/internal/util"
	"filetriage/pkg/categorizer"
)

// DefaultReadLimit caps how much of a file is read for classification.
const DefaultReadLimit = 1 << 20

/*
Discover recursively lists the regular files under rootDir, in lexical
order, as FileDescriptors. RelativePath starts with the base name of rootDir,
the way a browser folder picker reports it. Content is not loaded.
*/
func Discover(ctx context.Context, rootDir string, includeHidden bool) ([]categorizer.FileDescriptor, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rootDir, err)
	}
	base := filepath.Base(root)

	var files []categorizer.FileDescriptor
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !includeHidden && path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, categorizer.FileDescriptor{
			Name:         d.Name(),
			MimeType:     mime.TypeByExtension(filepath.Ext(d.Name())),
			RelativePath: filepath.ToSlash(filepath.Join(base, rel)),
			Path:         path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("Discovered %d files under %s", len(files), root)
	return files, nil
}

// Reader reads file text for classification. It prefers preloaded Content
// and otherwise reads at most Limit bytes from Path. Office documents and
// PDFs are parsed whole, up to DocumentLimit bytes, and their text returned.
type Reader struct {
	Limit         int64
	DocumentLimit int64
}

// NewReader returns a Reader with the default read limits.
func NewReader() *Reader {
	return &Reader{Limit: DefaultReadLimit, DocumentLimit: DefaultDocumentLimit}
}

func (r *Reader) ReadText(ctx context.Context, f categorizer.FileDescriptor) (string, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if extract, ok := documentExtractors[ext]; ok {
		return r.readDocument(f, extract)
	}

	data := f.Content
	if data == nil {
		var err error
		data, err = readFile(f.Path, orDefault(r.Limit, DefaultReadLimit))
		if err != nil {
			return "", err
		}
	}

	if util.IsLikelyBinary(data) {
		return "", fmt.Errorf("%s: %w", f.Name, categorizer.ErrNotText)
	}

	text, err := util.CleanFileContent(data, f.Name)
	if err != nil {
		return "", err
	}

	switch ext {
	case ".html", ".htm", ".xhtml":
		extracted, err := util.ExtractHTMLText(text)
		if err != nil {
			log.Warnf("%s: falling back to raw markup: %v", f.Name, err)
			return text, nil
		}
		return extracted, nil
	}
	return text, nil
}

func (r *Reader) readDocument(f categorizer.FileDescriptor, extract extractFunc) (string, error) {
	limit := orDefault(r.DocumentLimit, DefaultDocumentLimit)
	data := f.Content
	if data == nil {
		var err error
		data, err = readFile(f.Path, limit+1)
		if err != nil {
			return "", err
		}
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%s: document larger than %d bytes", f.Name, limit)
	}

	text, err := extract(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: no text in document: %w", f.Name, categorizer.ErrNotText)
	}
	return util.CleanFileContent([]byte(text), f.Name)
}

func readFile(path string, limit int64) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("file has neither content nor path")
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(fh, limit)); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func orDefault(n, def int64) int64 {
	if n <= 0 {
		return def
	}
	return n
}

var _ categorizer.ContentReader = (*Reader)(nil)
