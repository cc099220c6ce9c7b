package server

import (
	"errors"
	"fmt"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"io"
	"net/http"
)

func (h handlers) filePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.insertFileFromRequest(c)
		if err != nil {
			var de dbError
			if errors.As(err, &de) {
				log.WithError(err).Error("failed to insert uploaded file into data store")
				h.storeError(c, de.Err)
				return
			}
			log.WithError(err).Info("invalid upload")
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Bad request: %v", err),
			})
			return
		}

		c.JSON(http.StatusOK, types.RecordPostResponse{
			ID: string(id),
		})
	}
}

func (h handlers) fileList() gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := h.db.List(c.Request.Context())
		if err != nil {
			log.WithError(err).Error("failed to list records")
			h.storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func (h handlers) fileGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseRecordID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("bad record ID: %v", err),
			})
			return
		}

		record, err := h.db.Open(c.Request.Context(), id)
		if err != nil {
			h.storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, record.Summary)
	}
}

// fileRaw streams the stored bytes so the record can be viewed in a browser.
// Range requests are served straight from the store's reader.
func (h handlers) fileRaw() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseRecordID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("bad record ID: %v", err),
			})
			return
		}

		record, err := h.db.Open(c.Request.Context(), id)
		if err != nil {
			h.storeError(c, err)
			return
		}
		if closer, ok := record.Reader.(io.Closer); ok {
			defer closer.Close()
		}

		if record.ContentType != "" {
			c.Header("Content-Type", string(record.ContentType))
		}
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", record.Filename))
		http.ServeContent(c.Writer, c.Request, string(record.Filename), record.CreateAt, record.Reader)
	}
}

func (h handlers) fileDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseRecordID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("bad record ID: %v", err),
			})
			return
		}

		if err := h.db.Delete(c.Request.Context(), id); err != nil {
			log.WithError(err).WithField("id", id).Error("failed to delete record")
			h.storeError(c, err)
			return
		}
		c.Status(http.StatusOK)
	}
}

// storeError maps store failures onto HTTP statuses
func (h handlers) storeError(c *gin.Context, err error) {
	var (
		notFound    types.ErrFileNotExists
		validation  types.ErrValidation
		full        types.ErrStorageFull
		unavailable types.ErrStorageUnavailable
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("Record not found ID: %v", notFound.ID),
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Error(),
		})
	case errors.As(err, &full):
		c.JSON(http.StatusInsufficientStorage, gin.H{
			"error": full.Error(),
		})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Storage unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

// insertFileFromRequest reads the whole upload before handing it to the store,
// so a failed read never leaves a partial record behind.
func (h handlers) insertFileFromRequest(c *gin.Context) (types.ID, error) {
	r := c.Request
	if err := r.ParseMultipartForm(MultipartMaxMemory); err != nil {
		return types.ID(""), err
	}

	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.WithError(err).Warn("failed to free multipart form resources")
		}
	}()

	reader, metadata, err := r.FormFile("file")
	if err != nil {
		return types.ID(""), err
	}
	defer reader.Close()

	if err := validateFilename(metadata.Filename); err != nil {
		return types.ID(""), err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return types.ID(""), err
	}

	id, err := h.db.Put(r.Context(), types.NewFileRecordInput(
		metadata.Filename,
		metadata.Header.Get("Content-Type"),
		data,
	))
	if err != nil {
		return types.ID(""), dbError{err}
	}

	return id, nil
}
