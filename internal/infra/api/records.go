package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"waxtrade/internal/app/dto"
)

// Records lists every record currently offered for trade.
func (c *Client) Records(ctx context.Context) ([]dto.Record, error) {
	var items []dto.Record
	if err := c.do(ctx, "list records", http.MethodGet, "/records", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Record fetches one listing by id.
func (c *Client) Record(ctx context.Context, id string) (dto.Record, error) {
	var rec dto.Record
	if err := c.do(ctx, "get record", http.MethodGet, "/records/"+id, nil, &rec); err != nil {
		return dto.Record{}, err
	}
	return rec, nil
}

// CreateRecord lists a new record for trade.
func (c *Client) CreateRecord(ctx context.Context, req dto.CreateRecordRequest) (dto.Record, error) {
	var rec dto.Record
	if err := c.do(ctx, "create record", http.MethodPost, "/records/create", req, &rec); err != nil {
		return dto.Record{}, err
	}
	return rec, nil
}

// CoverUploadURL asks the backend for a presigned slot to upload a cover image.
func (c *Client) CoverUploadURL(ctx context.Context, filename, contentType string) (dto.UploadTicket, error) {
	q := url.Values{}
	q.Set("filename", filename)
	q.Set("content_type", contentType)
	var ticket dto.UploadTicket
	if err := c.do(ctx, "cover upload url", http.MethodGet, "/uploads/cover-url?"+q.Encode(), nil, &ticket); err != nil {
		return dto.UploadTicket{}, err
	}
	return ticket, nil
}

// UploadCover PUTs image bytes to a presigned upload URL. The upload target
// is object storage (or the stub's loopback endpoint), not the API, so this
// bypasses the usual request plumbing.
func (c *Client) UploadCover(ctx context.Context, ticket dto.UploadTicket, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ticket.UploadURL, body)
	if err != nil {
		return &Error{Op: "upload cover", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: "upload cover", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &Error{Op: "upload cover", Status: resp.StatusCode, Message: fmt.Sprintf("upload rejected (%d)", resp.StatusCode)}
	}
	return nil
}
