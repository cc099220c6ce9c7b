package types

import (
	"fmt"
	"github.com/gin-gonic/gin"
	"io"
	"net/http"
	"time"
)

type (
	ID          string
	Filename    string
	ContentType string

	// Summary is everything the store knows about a record except its bytes
	Summary struct {
		ID          ID          `json:"id"`
		Filename    Filename    `json:"filename"`
		ContentType ContentType `json:"content_type"`
		Size        int64       `json:"size"`
		CreateAt    time.Time   `json:"create_at"`
	}

	FileRecord struct {
		Summary
		Data []byte `json:"-"`
	}

	// FileRecordInput is what a caller hands to Store.Put. ID may be left empty,
	// in which case the store assigns one.
	FileRecordInput struct {
		ID          ID
		Filename    Filename
		ContentType ContentType
		Size        int64
		Data        []byte
	}

	UploadRecord struct {
		Summary
		Reader io.ReadSeeker
	}

	RecordPostResponse struct {
		ID string `json:"id"`
	}

	Authorizer interface {
		Authenticate(r *http.Request) bool
		StartSession(c *gin.Context)
		ClearSession(w http.ResponseWriter)
	}
)

// NewFileRecordInput builds an input whose Size already matches data
func NewFileRecordInput(filename, contentType string, data []byte) FileRecordInput {
	return FileRecordInput{
		Filename:    Filename(filename),
		ContentType: ContentType(contentType),
		Size:        int64(len(data)),
		Data:        data,
	}
}

// Validate checks the fields every backend relies on before anything is written.
func (in FileRecordInput) Validate() error {
	if in.Filename == "" {
		return ErrValidation{Field: "filename", Reason: "must not be empty"}
	}
	if in.Data == nil {
		return ErrValidation{Field: "data", Reason: "must not be nil"}
	}
	if in.Size != int64(len(in.Data)) {
		return ErrValidation{
			Field:  "size",
			Reason: fmt.Sprintf("declared %d bytes but data holds %d", in.Size, len(in.Data)),
		}
	}
	return nil
}

// Summary returns the metadata a store persists for in, stamped with id and createAt.
func (in FileRecordInput) Summary(id ID, createAt time.Time) Summary {
	return Summary{
		ID:          id,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		CreateAt:    createAt.UTC(),
	}
}
