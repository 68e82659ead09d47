package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Speak synthesizes text with voice and writes the audio to w. It returns
// the response content type, e.g. "audio/mpeg", and the number of bytes
// written.
func (c *Client) Speak(ctx context.Context, text, voice string, w io.Writer) (string, int64, error) {
	if text == "" {
		return "", 0, errors.New("text is empty")
	}

	// Long audio can take longer than the timeout to download.
	ctx, cancel, stop := c.withHeaderTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": voice,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshaling audio request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, ServiceAudio, "/api/audio/tts", nil, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := c.do(ServiceAudio, req)
	if !stop() {
		if err == nil {
			resp.Body.Close()
		}
		return "", 0, fmt.Errorf("waiting for audio response: %w", context.DeadlineExceeded)
	}
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, fmt.Errorf("writing audio: %w", err)
	}

	return resp.Header.Get("Content-Type"), n, nil
}

// Transcribe uploads the audio file at path and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	body, contentType, err := multipartBody("file", filepath.Base(path), f, nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := c.doMultipart(ctx, ServiceAudio, "/api/audio/stt", body, contentType, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
