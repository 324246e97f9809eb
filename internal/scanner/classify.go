package scanner

import (
	"bytes"
	"os"
)

// ContentType is the coarse classification stored on the file record (§3).
type ContentType string

const (
	ContentUnknown  ContentType = "unknown"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentDocument ContentType = "document"
	ContentArchive  ContentType = "archive"
	ContentOther    ContentType = "other"
)

var extToMime = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png", ".gif": "image/gif",
	".webp": "image/webp", ".heic": "image/heic", ".bmp": "image/bmp", ".tiff": "image/tiff",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".mkv": "video/x-matroska", ".avi": "video/x-msvideo",
	".mp3": "audio/mpeg", ".wav": "audio/wav", ".flac": "audio/flac", ".m4a": "audio/mp4",
	".pdf": "application/pdf", ".doc": "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls": "application/vnd.ms-excel", ".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt": "application/vnd.ms-powerpoint", ".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt": "text/plain", ".md": "text/markdown", ".rtf": "application/rtf", ".odt": "application/vnd.oasis.opendocument.text",
	".zip": "application/zip", ".tar": "application/x-tar", ".gz": "application/gzip",
	".7z": "application/x-7z-compressed", ".rar": "application/vnd.rar",
}

var extToContentType = map[string]ContentType{
	".jpg": ContentImage, ".jpeg": ContentImage, ".png": ContentImage, ".gif": ContentImage,
	".webp": ContentImage, ".heic": ContentImage, ".bmp": ContentImage, ".tiff": ContentImage,
	".mp4": ContentVideo, ".mov": ContentVideo, ".mkv": ContentVideo, ".avi": ContentVideo,
	".mp3": ContentAudio, ".wav": ContentAudio, ".flac": ContentAudio, ".m4a": ContentAudio,
	".pdf": ContentDocument, ".doc": ContentDocument, ".docx": ContentDocument,
	".xls": ContentDocument, ".xlsx": ContentDocument, ".ppt": ContentDocument, ".pptx": ContentDocument,
	".txt": ContentDocument, ".md": ContentDocument, ".rtf": ContentDocument, ".odt": ContentDocument,
	".zip": ContentArchive, ".tar": ContentArchive, ".gz": ContentArchive, ".7z": ContentArchive, ".rar": ContentArchive,
}

// magicSigs covers the small set of formats the spec calls out for
// magic-byte fallback: image, pdf, zip, office (office documents are
// zip containers, so they share the zip signature at the classification
// level; ContentExtractor distinguishes them later by examining contents).
var magicSigs = []struct {
	sig  []byte
	mime string
	ct   ContentType
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg", ContentImage},
	{[]byte{0x89, 'P', 'N', 'G'}, "image/png", ContentImage},
	{[]byte{'G', 'I', 'F', '8'}, "image/gif", ContentImage},
	{[]byte{'%', 'P', 'D', 'F'}, "application/pdf", ContentDocument},
	{[]byte{'P', 'K', 0x03, 0x04}, "application/zip", ContentArchive},
}

// Classify determines a file's MIME type and coarse content type, trying
// the extension map first and falling back to a magic-byte sniff for the
// formats named in §4.4.
func Classify(path, ext string) (mime string, ct ContentType) {
	if m, ok := extToMime[ext]; ok {
		return m, extToContentType[ext]
	}

	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream", ContentUnknown
	}
	defer f.Close()

	head := make([]byte, 16)
	n, _ := f.Read(head)
	head = head[:n]

	for _, sig := range magicSigs {
		if bytes.HasPrefix(head, sig.sig) {
			return sig.mime, sig.ct
		}
	}

	return "application/octet-stream", ContentOther
}
