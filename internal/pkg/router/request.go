package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
)

// maxBodyBytes caps a decoded JSON body.
const maxBodyBytes = 64 << 10

type Request struct {
	*http.Request
}

// GetParam returns the named path parameter matched by httprouter.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// DecodeBody decodes exactly one JSON value into dst. Unknown fields,
// trailing data and an empty body are rejected as an invalid format.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}
	empty, err := decodeStrict(r.Body, dst)
	if empty || err != nil {
		return goerror.NewInvalidFormat()
	}
	return nil
}

// DecodeOptionalBody is DecodeBody except that an empty body leaves dst
// unchanged.
func (r *Request) DecodeOptionalBody(dst any) error {
	if r == nil || r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if _, err := decodeStrict(r.Body, dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	return nil
}

func decodeStrict(body io.Reader, dst any) (empty bool, err error) {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return false, errors.New("router: trailing data after json body")
	}
	return false, nil
}
