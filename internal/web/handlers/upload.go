package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/kozaktomas/agent-faceid/internal/constants"
)

var (
	errNoPhotos       = errors.New("at least one photo is required")
	errTooManyPhotos  = fmt.Errorf("at most %d photos are accepted", constants.MaxPhotosPerRequest)
	errUnreadablePart = errors.New("failed to read uploaded photo")
)

// photoFields are the multipart fields accepted for photos, in lookup order.
var photoFields = []string{"photos", "photo", "file"}

// readPhotos returns the uploaded photos in the order they were sent.
// ParseMultipartForm must have been called.
func readPhotos(r *http.Request) ([][]byte, error) {
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		for _, field := range photoFields {
			if fh := r.MultipartForm.File[field]; len(fh) > 0 {
				files = fh
				break
			}
		}
	}
	if len(files) == 0 {
		return nil, errNoPhotos
	}
	if len(files) > constants.MaxPhotosPerRequest {
		return nil, errTooManyPhotos
	}

	photos := make([][]byte, 0, len(files))
	for _, fileHeader := range files {
		data, err := readPart(fileHeader)
		if err != nil {
			return nil, err
		}
		photos = append(photos, data)
	}
	return photos, nil
}

func readPart(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errUnreadablePart
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errUnreadablePart
	}
	return data, nil
}
