package transcodes

import (
	"video-site/media"
)

// UploadRef identifies a finished upload on disk, as handed over by the
// resumable-upload server.
type UploadRef struct {
	StoragePath string            `json:"storagePath"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Filename is the client-supplied file name, if any.
func (u UploadRef) Filename() string {
	return u.Metadata["filename"]
}

// Job is the payload of one queued transcode.
type Job struct {
	Upload      UploadRef    `json:"upload"`
	UploadEntry media.Upload `json:"uploadEntry"`
	VideoEntry  media.Video  `json:"videoEntry"`
}
