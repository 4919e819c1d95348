package synology

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	PathAuth  = "/webapi/auth.cgi"
	PathEntry = "/webapi/entry.cgi"

	APIAuth              = "SYNO.API.Auth"
	APICamera            = "SYNO.SurveillanceStation.Camera"
	APICameraEvent       = "SYNO.Surveillance.Camera.Event"
	APIExternalRecording = "SYNO.SurveillanceStation.ExternalRecording"

	VersionAuth   = 6
	VersionCamera = 9

	// ParamSID - query key of the session token, added by the client to every
	// authenticated request.
	ParamSID = "_sid"

	SessionName = "SurveillanceStation"
)

// Request describes one Web API call. Params must not contain the session
// token, the client injects it.
type Request struct {
	Path       string
	API        string
	Method     string
	Version    int
	HTTPMethod string
	Params     url.Values
}

func (r *Request) values(sid string) url.Values {
	v := make(url.Values, len(r.Params)+4)
	for key, values := range r.Params {
		v[key] = append([]string(nil), values...)
	}
	v.Set("api", r.API)
	v.Set("method", r.Method)
	v.Set("version", strconv.Itoa(r.Version))
	if sid != "" {
		v.Set(ParamSID, sid)
	} else {
		v.Del(ParamSID)
	}
	return v
}

func checkMethod(method string) error {
	switch method {
	case http.MethodGet, http.MethodPost:
		return nil
	}
	return &UnsupportedMethodError{Method: method}
}

// Response - decoded success envelope: {"success":true,"data":{...}}
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`

	Raw []byte `json:"-"`
}

// Unmarshal decodes the data payload into v.
func (r *Response) Unmarshal(v any) error {
	if len(r.Data) == 0 {
		return errors.New("synology: response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// parseResponse checks the success flag of the envelope. Anything that is not
// a valid JSON object with "success":true is an APIError.
func parseResponse(body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, &APIError{Raw: body}
	}

	if success := gjson.GetBytes(body, "success"); success.Type != gjson.True {
		code := gjson.GetBytes(body, "error.code").Int()
		return nil, &APIError{Code: int(code), Raw: body}
	}

	res := &Response{Success: true, Raw: body}
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		res.Data = json.RawMessage(data.Raw)
	}
	return res, nil
}

// CameraParams - parameters of calls addressed to a single camera.
type CameraParams struct {
	CameraID int
}

func (p CameraParams) Values() url.Values {
	return url.Values{"cameraId": {strconv.Itoa(p.CameraID)}}
}

type MotionParams struct {
	CameraID int
	Source   string
}

func (p MotionParams) Values() url.Values {
	v := CameraParams{CameraID: p.CameraID}.Values()
	v.Set("source", p.Source)
	return v
}

type RecordAction string

const (
	RecordStart RecordAction = "start"
	RecordStop  RecordAction = "stop"
)

type RecordParams struct {
	CameraID int
	Action   RecordAction
}

func (p RecordParams) Values() url.Values {
	v := CameraParams{CameraID: p.CameraID}.Values()
	v.Set("action", string(p.Action))
	return v
}
