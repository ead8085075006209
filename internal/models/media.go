package models

import "time"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type Media struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	UploadedBy  string    `json:"uploaded_by"`
	FileName    string    `json:"file_name"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"content_type"`
	MediaType   string    `json:"media_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url,omitempty"` // presigned, never stored
}

// mediaExtensions maps allowed upload extensions to their media type
var mediaExtensions = map[string]string{
	"png":  MediaTypeImage,
	"jpg":  MediaTypeImage,
	"jpeg": MediaTypeImage,
	"gif":  MediaTypeImage,
	"mp4":  MediaTypeVideo,
	"mov":  MediaTypeVideo,
	"avi":  MediaTypeVideo,
}

// MediaTypeForExtension returns the media type for a lower-case extension
// without the leading dot, and false when the extension is not allowed.
func MediaTypeForExtension(ext string) (string, bool) {
	mt, ok := mediaExtensions[ext]
	return mt, ok
}
