package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SupportedDocumentExtensions lists the file extensions the document service
// accepts.
var SupportedDocumentExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

// IsSupportedDocument reports whether name has an extension the document
// service accepts.
func IsSupportedDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedDocumentExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// UploadDocument uploads the file at path for processing. Notes are
// generated asynchronously by the service.
func (c *Client) UploadDocument(ctx context.Context, path string) (*UploadResult, error) {
	name := filepath.Base(path)
	if !IsSupportedDocument(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	return c.UploadDocumentReader(ctx, name, f)
}

// UploadDocumentReader uploads the contents of r under the file name name.
func (c *Client) UploadDocumentReader(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if !IsSupportedDocument(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}

	body, contentType, err := multipartBody("file", name, r, map[string]string{"user_id": userID})
	if err != nil {
		return nil, err
	}

	out := &UploadResult{}
	if err := c.doMultipart(ctx, ServiceDocument, "/api/documents/upload", body, contentType, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Document returns the details of a document.
func (c *Client) Document(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, errors.New("document id is required")
	}

	out := &Document{}
	if err := c.doJSON(ctx, http.MethodGet, ServiceDocument, "/api/documents/"+url.PathEscape(id), nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DocumentNotes returns the generated notes of a document. Notes.Ready is
// false while they are still being generated.
func (c *Client) DocumentNotes(ctx context.Context, id string) (*Notes, error) {
	if id == "" {
		return nil, errors.New("document id is required")
	}

	out := &Notes{}
	path := "/api/documents/" + url.PathEscape(id) + "/notes"
	if err := c.doJSON(ctx, http.MethodGet, ServiceDocument, path, nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RegenerateNotes asks the service to generate the notes of a document again.
func (c *Client) RegenerateNotes(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document id is required")
	}

	path := "/api/documents/" + url.PathEscape(id) + "/regenerate-notes"
	return c.doJSON(ctx, http.MethodPost, ServiceDocument, path, nil, nil, &statusResponse{})
}

// ListDocuments returns up to limit of the session user's documents, newest
// first. A zero limit uses the service default.
func (c *Client) ListDocuments(ctx context.Context, limit uint) ([]Document, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	query := url.Values{"user_id": {userID}}
	if limit > 0 {
		query.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}

	var out []Document
	if err := c.doJSON(ctx, http.MethodGet, ServiceDocument, "/api/documents", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDocument deletes a document and its notes.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document id is required")
	}

	return c.doJSON(ctx, http.MethodDelete, ServiceDocument, "/api/documents/"+url.PathEscape(id), nil, nil, &statusResponse{})
}

// multipartBody buffers a multipart form holding one file part and fields.
func multipartBody(field, name string, r io.Reader, fields map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", name, err)
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart form: %w", err)
	}

	return buf, mw.FormDataContentType(), nil
}

func (c *Client) doMultipart(ctx context.Context, svc Service, path string, body io.Reader, contentType string, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, svc, path, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(svc, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", svc, err)
	}
	return nil
}
