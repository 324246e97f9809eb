// Package indexmanager implements §4.5 IndexManager: watched-folder
// lifecycle, incremental upsert into the Store, tombstoning of vanished
// files, and folder counters. It is the glue between Scanner and Store
// named in §2's data-flow line.
package indexmanager

import "github.com/familyvault/familyvault-core/internal/scanner"

// Visibility is the per-file/per-folder sync eligibility flag (§3).
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFamily  Visibility = "family"
)

// Folder is a watched folder row (§3 Watched folder).
type Folder struct {
	ID                int64
	Path              string
	Name              string
	Enabled           bool
	DefaultVisibility Visibility
	LastScanAt        *int64
	FileCount         int64
	TotalSize         int64
}

// FileRecord is a file row (§3 File record).
type FileRecord struct {
	ID              int64
	FolderID        int64
	RelativePath    string
	Name            string
	Extension       string
	Size            int64
	MimeType        string
	ContentType     scanner.ContentType
	Checksum        *string
	CreatedAt       int64
	ModifiedAt      int64
	IndexedAt       int64
	Visibility      *Visibility
	SourceDeviceID  *string
	RemoteID        *string
	IsRemote        bool
	SyncVersion     int64
	LastModifiedBy  *string
}

// EffectiveVisibility resolves the per-file override, falling back to the
// owning folder's default (§3 invariant).
func (f FileRecord) EffectiveVisibility(folderDefault Visibility) Visibility {
	if f.Visibility != nil {
		return *f.Visibility
	}
	return folderDefault
}

// ScanProgress is reported to the caller's on_progress callback (§4.5).
type ScanProgress struct {
	FolderID       int64
	FilesScanned   int
	FilesTotal     int
	CurrentFile    string
	Done           bool
}
