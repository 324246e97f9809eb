// Package indexsync implements §4.14 IndexSync: the JSON message exchange
// that replicates family-visible file rows between paired devices over an
// established transport connection, plus the push/pull service loop.
package indexsync

// FileDescriptor is one family-visible row as carried on the wire (§4.14).
type FileDescriptor struct {
	RemoteID       string  `json:"remote_id"`
	Name           string  `json:"name"`
	RelativePath   string  `json:"relative_path"`
	Size           int64   `json:"size"`
	MimeType       string  `json:"mime_type"`
	ContentType    string  `json:"content_type"`
	Checksum       *string `json:"checksum,omitempty"`
	ModifiedAt     int64   `json:"modified_at"`
	SyncVersion    int64   `json:"sync_version"`
	SourceDeviceID string  `json:"source_device_id"`
}

// IndexRequest asks the peer for every family-visible row with
// sync_version > SinceVersion; Full ignores the cursor and asks for
// everything.
type IndexRequest struct {
	SinceVersion int64 `json:"since_version"`
	Full         bool  `json:"full"`
}

// IndexResponse answers an IndexRequest.
type IndexResponse struct {
	Rows      []FileDescriptor `json:"rows"`
	NewCursor int64            `json:"new_cursor"`
}

// IndexNotify is an unsolicited push of rows changed since the sender's
// last push to this peer.
type IndexNotify struct {
	Rows []FileDescriptor `json:"rows"`
}

// IndexTombstone signals that the named remote rows are no longer
// family-visible on the sender and should be removed by the receiver.
type IndexTombstone struct {
	RemoteIDs []string `json:"remote_ids"`
}
