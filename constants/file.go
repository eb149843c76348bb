package constants

import "strings"

// Document formats the pipeline accepts.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TEXT  = "TEXT"
)

// AllowedExtensions holds the accepted file extensions for receipt uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"tiff": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a document format, or "" when
// the extension is not recognized.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "gif", "bmp", "tiff":
		return IMAGE
	case "txt", "text":
		return TEXT
	default:
		return ""
	}
}

// MapContentTypeToFormat maps a declared MIME type to a document format,
// or "" when the type is not recognized.
func MapContentTypeToFormat(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return PDF
	case strings.HasPrefix(ct, "image/"):
		return IMAGE
	case strings.HasPrefix(ct, "text/"):
		return TEXT
	default:
		return ""
	}
}
