// Package lambdaproxy serves an http.Handler behind API Gateway proxy integration.
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HandlerFunc is the signature lambda.Start expects for proxy integrations.
type HandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Handler adapts API Gateway events to h
func Handler(h http.Handler, log logrus.FieldLogger) HandlerFunc {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// Create a new http.Request from the API Gateway event
		httpReq, err := createHTTPRequest(ctx, req)
		if err != nil {
			log.WithError(err).Error("Error creating HTTP request")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusInternalServerError,
				Body:       "Internal server error",
			}, nil
		}

		// Create a response recorder to capture the router's response
		rec := newResponseRecorder()
		h.ServeHTTP(rec, httpReq)

		return rec.toProxyResponse(), nil
	}
}

// createHTTPRequest creates an http.Request from an API Gateway event
func createHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if req.Body != "" {
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 body: %w", err)
			}
			body = bytes.NewReader(decoded)
		} else {
			body = strings.NewReader(req.Body)
		}
	}

	// Determine the full request path, substituting any templated parameters
	path := req.Path
	for param, value := range req.PathParameters {
		path = strings.ReplaceAll(path, "{"+param+"}", value)
	}
	if path == "" {
		path = "/"
	}

	// API Gateway hands over the decoded path
	target := (&url.URL{Path: path}).String()

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, target, body)
	if err != nil {
		return nil, err
	}

	// Multi-value parameters carry everything the single-value maps do
	query := url.Values{}
	if len(req.MultiValueQueryStringParameters) > 0 {
		for param, values := range req.MultiValueQueryStringParameters {
			for _, v := range values {
				query.Add(param, v)
			}
		}
	} else {
		for param, value := range req.QueryStringParameters {
			query.Add(param, value)
		}
	}
	httpReq.URL.RawQuery = query.Encode()

	if len(req.MultiValueHeaders) > 0 {
		for key, values := range req.MultiValueHeaders {
			for _, v := range values {
				httpReq.Header.Add(key, v)
			}
		}
	} else {
		for key, value := range req.Headers {
			httpReq.Header.Add(key, value)
		}
	}

	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if httpReq.Header.Get("X-Request-Id") == "" {
		httpReq.Header.Set("X-Request-Id", requestID)
	}
	if ip := req.RequestContext.Identity.SourceIP; ip != "" {
		httpReq.RemoteAddr = ip
		if httpReq.Header.Get("X-Forwarded-For") == "" {
			httpReq.Header.Set("X-Forwarded-For", ip)
		}
	}

	return httpReq, nil
}

// responseRecorder captures the handler's HTTP response
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     http.Header{},
		statusCode: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(body)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = statusCode
	r.wroteHeader = true
}

func (r *responseRecorder) toProxyResponse() events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(r.header))
	for key, values := range r.header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode:        r.statusCode,
		Headers:           headers,
		MultiValueHeaders: map[string][]string(r.header.Clone()),
		Body:              r.body.String(),
	}
}
