package synology

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCameraOperations(t *testing.T) {
	c, tr := newFakeClient(t, deviceHandler("ABC123"))

	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx))

	tests := []struct {
		name   string
		call   func() (*Response, error)
		verb   string
		api    string
		method string
		extra  map[string]string
	}{
		{
			name:   "info",
			call:   func() (*Response, error) { return c.CameraInfo(ctx) },
			verb:   http.MethodGet,
			api:    APICamera,
			method: "GetInfo",
		},
		{
			name:   "live view",
			call:   func() (*Response, error) { return c.LiveViewPath(ctx, 7) },
			verb:   http.MethodGet,
			api:    APICamera,
			method: "GetLiveViewPath",
			extra:  map[string]string{"cameraId": "7"},
		},
		{
			name:   "motion setup",
			call:   func() (*Response, error) { return c.SetupMotionDetection(ctx, 2) },
			verb:   http.MethodPost,
			api:    APICameraEvent,
			method: "MDParamSave",
			extra:  map[string]string{"cameraId": "2", "source": "motion"},
		},
		{
			name:   "motion events",
			call:   func() (*Response, error) { return c.MotionEvents(ctx, 2) },
			verb:   http.MethodGet,
			api:    APICameraEvent,
			method: "MotionEnum",
			extra:  map[string]string{"cameraId": "2"},
		},
		{
			name:   "start recording",
			call:   func() (*Response, error) { return c.StartRecording(ctx, 5) },
			verb:   http.MethodPost,
			api:    APIExternalRecording,
			method: "Record",
			extra:  map[string]string{"cameraId": "5", "action": "start"},
		},
		{
			name:   "stop recording",
			call:   func() (*Response, error) { return c.StopRecording(ctx, 5) },
			verb:   http.MethodPost,
			api:    APIExternalRecording,
			method: "Record",
			extra:  map[string]string{"cameraId": "5", "action": "stop"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := test.call()
			require.NoError(t, err)
			require.True(t, res.Success)

			r, body := tr.last()
			require.Equal(t, test.verb, r.Method)
			require.Equal(t, PathEntry, r.URL.Path)

			if test.verb == http.MethodPost {
				require.Empty(t, r.URL.RawQuery)
			} else {
				require.Empty(t, body)
			}

			v := params(r, body)
			require.Equal(t, test.api, v.Get("api"))
			require.Equal(t, test.method, v.Get("method"))
			require.Equal(t, strconv.Itoa(VersionCamera), v.Get("version"))
			require.Equal(t, "ABC123", v.Get(ParamSID))

			for key, value := range test.extra {
				require.Equal(t, value, v.Get(key), key)
			}
			require.Len(t, v, 4+len(test.extra))
		})
	}
}

func TestSnapshot(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, '{', 0x00, 0xFF, 0xD9}

	c, tr := newFakeClient(t, func(r *http.Request, body string) reply {
		if r.URL.Path == PathAuth {
			return loginOK("ABC123")
		}
		return reply{contentType: "image/jpeg", body: string(image)}
	})

	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx))

	b, err := c.Snapshot(ctx, 3)
	require.NoError(t, err)
	require.True(t, bytes.Equal(image, b))

	r, _ := tr.last()
	q := r.URL.Query()
	require.Equal(t, http.MethodGet, r.Method)
	require.Equal(t, APICamera, q.Get("api"))
	require.Equal(t, "GetSnapshot", q.Get("method"))
	require.Equal(t, "3", q.Get("cameraId"))
	require.Equal(t, "ABC123", q.Get(ParamSID))
}

func TestSnapshotSessionExpired(t *testing.T) {
	var logins int32
	c, tr := newFakeClient(t, func(r *http.Request, body string) reply {
		if r.URL.Path == PathAuth {
			return loginOK("sid" + strconv.Itoa(int(atomic.AddInt32(&logins, 1))))
		}
		if r.URL.Query().Get(ParamSID) == "sid1" {
			return reply{contentType: "text/plain", body: `{"error":{"code":119},"success":false}`}
		}
		return reply{contentType: "image/jpeg", body: "JPEG"}
	})

	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx))

	b, err := c.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "JPEG", string(b))
	require.Equal(t, 4, tr.count())
}

func TestSnapshotError(t *testing.T) {
	c, _ := newFakeClient(t, func(r *http.Request, body string) reply {
		if r.URL.Path == PathAuth {
			return loginOK("ABC123")
		}
		return reply{body: `{"success":false,"error":{"code":400}}`}
	})

	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx))

	_, err := c.Snapshot(ctx, 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Code)
}

func TestResponseUnmarshal(t *testing.T) {
	res, err := parseResponse([]byte(`{"success":true,"data":{"pathInfos":[{"id":1,"mjpegHttpPath":"/mjpeg"}]}}`))
	require.NoError(t, err)

	var data struct {
		PathInfos []struct {
			ID        int    `json:"id"`
			MJPEGPath string `json:"mjpegHttpPath"`
		} `json:"pathInfos"`
	}
	require.NoError(t, res.Unmarshal(&data))
	require.Len(t, data.PathInfos, 1)
	require.Equal(t, "/mjpeg", data.PathInfos[0].MJPEGPath)

	res, err = parseResponse([]byte(`{"success":true}`))
	require.NoError(t, err)
	require.Error(t, res.Unmarshal(&data))
}
