package categorizer

import (
	"strings"
)

// OtherCategory is returned for unknown or missing extensions.
const OtherCategory = "other"

const (
	CategoryWord         = "Word document"
	CategorySpreadsheet  = "Excel spreadsheet"
	CategoryPresentation = "PowerPoint presentation"
	CategoryPDF          = "PDF document"
	CategoryImage        = "image"
	CategoryVideo        = "video"
	CategoryAudio        = "audio"
	CategoryArchive      = "archive"
	CategoryCode         = "code"
	CategoryFont         = "font"
	CategoryData         = "data"
)

var defaultExtensions = map[string]string{
	"doc": CategoryWord, "docx": CategoryWord, "odt": CategoryWord, "rtf": CategoryWord,
	"xls": CategorySpreadsheet, "xlsx": CategorySpreadsheet, "ods": CategorySpreadsheet, "csv": CategorySpreadsheet,
	"ppt": CategoryPresentation, "pptx": CategoryPresentation, "odp": CategoryPresentation,
	"pdf": CategoryPDF,
	"jpg": CategoryImage, "jpeg": CategoryImage, "png": CategoryImage, "gif": CategoryImage,
	"bmp": CategoryImage, "webp": CategoryImage, "tiff": CategoryImage, "heic": CategoryImage, "ico": CategoryImage,
	"mp4": CategoryVideo, "avi": CategoryVideo, "mov": CategoryVideo, "wmv": CategoryVideo,
	"mkv": CategoryVideo, "flv": CategoryVideo, "m4v": CategoryVideo,
	"mp3": CategoryAudio, "wav": CategoryAudio, "flac": CategoryAudio, "aac": CategoryAudio, "ogg": CategoryAudio,
	"zip": CategoryArchive, "rar": CategoryArchive, "7z": CategoryArchive,
	"tar": CategoryArchive, "gz": CategoryArchive, "bz2": CategoryArchive, "xz": CategoryArchive,
	"py": CategoryCode, "js": CategoryCode, "ts": CategoryCode, "java": CategoryCode, "cpp": CategoryCode,
	"c": CategoryCode, "h": CategoryCode, "go": CategoryCode, "rs": CategoryCode, "rb": CategoryCode,
	"php": CategoryCode, "swift": CategoryCode, "kt": CategoryCode,
	"ttf": CategoryFont, "otf": CategoryFont, "woff": CategoryFont, "woff2": CategoryFont,
	"json": CategoryData, "xml": CategoryData, "yaml": CategoryData, "yml": CategoryData, "sql": CategoryData,
}

var icons = map[string]string{
	CategoryWord:         "📄",
	CategorySpreadsheet:  "📊",
	CategoryPresentation: "📈",
	CategoryPDF:          "📕",
	CategoryImage:        "🖼️",
	CategoryVideo:        "🎬",
	CategoryAudio:        "🎵",
	CategoryArchive:      "🗜️",
	CategoryCode:         "💻",
	CategoryFont:         "🔤",
	CategoryData:         "🗃️",
	OtherCategory:        "📦",
}

// Lookup maps file extensions to categories.
type Lookup struct {
	table map[string]string
}

// DefaultLookup uses the built-in extension table.
var DefaultLookup = NewLookup(nil)

// NewLookup returns the built-in table merged with overrides, given as
// category label -> extensions. Extensions may carry a leading dot.
func NewLookup(overrides map[string][]string) *Lookup {
	table := make(map[string]string, len(defaultExtensions))
	for ext, cat := range defaultExtensions {
		table[ext] = cat
	}
	for cat, exts := range overrides {
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext == "" {
				continue
			}
			table[ext] = cat
		}
	}
	return &Lookup{table: table}
}

// CategoryOf returns the category for filename's extension, or OtherCategory.
func (l *Lookup) CategoryOf(filename string) string {
	ext, ok := extension(filename)
	if !ok {
		return OtherCategory
	}
	if cat, ok := l.table[ext]; ok {
		return cat
	}
	return OtherCategory
}

// Categorize produces extension-based results for files, in order.
func (l *Lookup) Categorize(files []FileDescriptor) []ClassificationResult {
	out := make([]ClassificationResult, 0, len(files))
	for _, f := range files {
		out = append(out, resultFor(f, l.CategoryOf(f.Name)))
	}
	return out
}

// CategoryOf classifies filename with the built-in table.
func CategoryOf(filename string) string {
	return DefaultLookup.CategoryOf(filename)
}

func extension(filename string) (string, bool) {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	dot := strings.LastIndexByte(filename, '.')
	if dot < 0 || dot == len(filename)-1 {
		return "", false
	}
	return strings.ToLower(filename[dot+1:]), true
}

// Icon returns a display glyph for category.
func Icon(category string) string {
	if icon, ok := icons[category]; ok {
		return icon
	}
	return icons[OtherCategory]
}

// CategoryCount is one row of a per-category summary.
type CategoryCount struct {
	Category string
	Count    int
}

// Summarize counts results per category in first-seen order.
func Summarize(results []ClassificationResult) []CategoryCount {
	var out []CategoryCount
	idx := make(map[string]int)
	for _, r := range results {
		i, ok := idx[r.Category]
		if !ok {
			i = len(out)
			idx[r.Category] = i
			out = append(out, CategoryCount{Category: r.Category})
		}
		out[i].Count++
	}
	return out
}
