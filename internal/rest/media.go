package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadMedia posts a file as multipart form data and returns the hosted
// URL for use in a subsequent message. Uses the longer media timeout.
func (c *Client) UploadMedia(ctx context.Context, filename string, content io.Reader) (string, error) {
	op := "POST /media"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", &SyncError{Op: op, Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", &SyncError{Op: op, Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", &SyncError{Op: op, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/media", nil, &buf, c.timeouts.Media)
	if err != nil {
		return "", err
	}
	defer req.cancel()
	req.req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(req.req, op, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &SyncError{Op: op, Err: fmt.Errorf("server returned no media url")}
	}
	return out.URL, nil
}
