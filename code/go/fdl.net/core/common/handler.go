package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	// AppErrorHeader - a http response header to send an application error code.
	AppErrorHeader = "X-App-Error-Code"

	// UserHeader carries the acting principal's numeric id, 0 or absent for anonymous.
	UserHeader = "X-Fdl-User"
	// UserGroupsHeader carries the principal's group names, comma separated.
	UserGroupsHeader = "X-Fdl-Groups"
	// ContextHeader carries the active site context key.
	ContextHeader = "X-Fdl-Context"
)

/*ReqRespHandlerf - a type for the default handler signature */
type ReqRespHandlerf func(w http.ResponseWriter, r *http.Request)

/*JSONResponderF - a handler that takes a standard request and responds with a json response */
type JSONResponderF func(ctx context.Context, r *http.Request) (interface{}, error)

/*Respond - respond either data or error as a response */
func Respond(w http.ResponseWriter, data interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err != nil {
		data := make(map[string]interface{}, 2)
		data["error"] = err.Error()
		statusCode := http.StatusBadRequest
		if cerr, ok := err.(*Error); ok {
			data["code"] = cerr.Code
			w.Header().Set(AppErrorHeader, cerr.Code)
			if cerr.StatusCode != 0 {
				statusCode = cerr.StatusCode
			}
		}
		buf := bytes.NewBuffer(nil)
		json.NewEncoder(buf).Encode(data) //nolint:errcheck // buffered
		w.WriteHeader(statusCode)
		fmt.Fprintln(w, buf.String())
	} else if data != nil {
		json.NewEncoder(w).Encode(data) //nolint:errcheck
	}
}

/*ToJSONResponse - to json response */
func ToJSONResponse(handler JSONResponderF) ReqRespHandlerf {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data, err := handler(ctx, r)
		Respond(w, data, err)
	}
}
