package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// UploadRequest describes one multipart file upload.
type UploadRequest struct {
	// FieldName is the form field carrying the file. Defaults to "file".
	FieldName string
	FileName  string
	Content   io.Reader
	// Fields are extra form values sent alongside the file.
	Fields map[string]string
}

// UploadConfig carries the per-upload options. Uploads are never retried.
type UploadConfig struct {
	Token string
	// Timeout bounds the whole upload. Zero uses the client's upload timeout.
	Timeout time.Duration
	Headers map[string]string
	// OnProgress receives the percentage (0-100) of request bytes handed to
	// the transport. It is called only when the percentage changes.
	OnProgress func(percent int)
}

// Upload posts a multipart/form-data request and returns the payload the
// same way Do does.
func (c *Client) Upload(ctx context.Context, endpoint string, upload UploadRequest, opts UploadConfig) (json.RawMessage, error) {
	if upload.Content == nil {
		return nil, &APIError{Message: MessageInvalidBody, Err: errors.New("upload content is nil")}
	}

	body, contentType, err := encodeMultipart(upload)
	if err != nil {
		return nil, &APIError{Message: MessageInvalidBody, Err: err}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.uploadTimeout
	}
	uploadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reader := &progressReader{
		reader:   bytes.NewReader(body),
		total:    int64(len(body)),
		callback: opts.OnProgress,
		last:     -1,
	}
	request, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, &APIError{Message: MessageInvalidBody, Err: err}
	}
	request.ContentLength = reader.total
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")
	if opts.Token != "" {
		request.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	for key, value := range opts.Headers {
		request.Header.Set(key, value)
	}

	reader.report(0)
	log.Debug("uploading %s (%d bytes) to %s", upload.FileName, reader.total, endpoint)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, transportError(ctx, uploadCtx, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(ctx, uploadCtx, err)
	}

	payload, err := handleResponse(response, raw)
	if err != nil {
		log.Warn("upload of %s to %s failed: %v", upload.FileName, endpoint, err)
		return nil, err
	}
	return payload, nil
}

func encodeMultipart(upload UploadRequest) ([]byte, string, error) {
	fieldName := upload.FieldName
	if fieldName == "" {
		fieldName = "file"
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for key, value := range upload.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile(fieldName, upload.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return nil, "", fmt.Errorf("reading upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buffer.Bytes(), writer.FormDataContentType(), nil
}

// progressReader reports how much of the request body the transport has
// consumed.
type progressReader struct {
	reader   io.Reader
	total    int64
	callback func(percent int)

	mu   sync.Mutex
	sent int64
	last int
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		p.report(int(sent * 100 / p.total))
	}
	return n, err
}

func (p *progressReader) report(percent int) {
	if p.callback == nil {
		return
	}
	p.mu.Lock()
	if percent <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = percent
	p.mu.Unlock()
	p.callback(percent)
}
