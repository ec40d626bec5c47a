package ingest

import "strings"

// Attachment is the inbound media a user submitted through the chat
// platform. Only the fields the pipeline needs are carried.
type Attachment struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
}

// mediaKind returns the top-level token of the declared media type, e.g.
// "audio" for "audio/mpeg". Empty when no type was declared.
func (a Attachment) mediaKind() string {
	kind, _, _ := strings.Cut(a.ContentType, "/")
	return kind
}

func (a Attachment) isAudio() bool { return a.mediaKind() == "audio" }
func (a Attachment) isVideo() bool { return a.mediaKind() == "video" }
