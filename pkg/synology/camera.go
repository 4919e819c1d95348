package synology

import (
	"bytes"
	"context"
	"mime"
	"net/http"
)

// Snapshot returns current camera image as is, the body is not decoded.
func (c *Client) Snapshot(ctx context.Context, cameraID int) ([]byte, error) {
	req := Request{
		Path:       PathEntry,
		API:        APICamera,
		Method:     "GetSnapshot",
		Version:    VersionCamera,
		HTTPMethod: http.MethodGet,
		Params:     CameraParams{CameraID: cameraID}.Values(),
	}

	var image []byte

	err := c.call(ctx, func(sid string) error {
		body, header, err := c.send(ctx, req.HTTPMethod, req.Path, req.values(sid))
		if err != nil {
			return err
		}
		// device reports errors with JSON envelope and status 200
		if isJSON(header, body) {
			if _, err = parseResponse(body); err != nil {
				return err
			}
			return &APIError{Raw: body}
		}
		image = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return image, nil
}

func (c *Client) CameraInfo(ctx context.Context) (*Response, error) {
	return c.Dispatch(ctx, Request{
		Path:       PathEntry,
		API:        APICamera,
		Method:     "GetInfo",
		Version:    VersionCamera,
		HTTPMethod: http.MethodGet,
	})
}

func (c *Client) LiveViewPath(ctx context.Context, cameraID int) (*Response, error) {
	return c.Dispatch(ctx, Request{
		Path:       PathEntry,
		API:        APICamera,
		Method:     "GetLiveViewPath",
		Version:    VersionCamera,
		HTTPMethod: http.MethodGet,
		Params:     CameraParams{CameraID: cameraID}.Values(),
	})
}

// SetupMotionDetection switches camera motion detection to the camera source.
func (c *Client) SetupMotionDetection(ctx context.Context, cameraID int) (*Response, error) {
	return c.Dispatch(ctx, Request{
		Path:       PathEntry,
		API:        APICameraEvent,
		Method:     "MDParamSave",
		Version:    VersionCamera,
		HTTPMethod: http.MethodPost,
		Params:     MotionParams{CameraID: cameraID, Source: "motion"}.Values(),
	})
}

func (c *Client) MotionEvents(ctx context.Context, cameraID int) (*Response, error) {
	return c.Dispatch(ctx, Request{
		Path:       PathEntry,
		API:        APICameraEvent,
		Method:     "MotionEnum",
		Version:    VersionCamera,
		HTTPMethod: http.MethodGet,
		Params:     CameraParams{CameraID: cameraID}.Values(),
	})
}

func (c *Client) StartRecording(ctx context.Context, cameraID int) (*Response, error) {
	return c.record(ctx, cameraID, RecordStart)
}

func (c *Client) StopRecording(ctx context.Context, cameraID int) (*Response, error) {
	return c.record(ctx, cameraID, RecordStop)
}

func (c *Client) record(ctx context.Context, cameraID int, action RecordAction) (*Response, error) {
	return c.Dispatch(ctx, Request{
		Path:       PathEntry,
		API:        APIExternalRecording,
		Method:     "Record",
		Version:    VersionCamera,
		HTTPMethod: http.MethodPost,
		Params:     RecordParams{CameraID: cameraID, Action: action}.Values(),
	})
}

func isJSON(header http.Header, body []byte) bool {
	if ct := header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
			return true
		}
	}
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("{"))
}
