package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// AuthValidate asks the identity service to verify the signed session
// (X-Session-Id, X-Timestamp, X-Signature). WebSocket clients cannot set
// headers, so the same values are accepted as query parameters.
func AuthValidate(identityServiceURL string, client *http.Client) func(http.Handler) http.Handler {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := headerOrQuery(r, "X-Session-Id", "session_id")
			timestamp := headerOrQuery(r, "X-Timestamp", "timestamp")
			signature := headerOrQuery(r, "X-Signature", "signature")
			if sessionID == "" || timestamp == "" || signature == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
			// The client signs pathname only, no query string.
			bodyForSignature := string(body)
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				bodyForSignature = ""
			}
			reqBody := map[string]string{
				"session_id": sessionID,
				"timestamp":  timestamp,
				"signature":  signature,
				"method":     r.Method,
				"path":       r.URL.Path,
				"body":       bodyForSignature,
			}
			jsonBody, _ := json.Marshal(reqBody)
			req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, identityServiceURL+"/internal/validate", bytes.NewReader(jsonBody))
			if err != nil {
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			var result struct {
				UserID string `json:"user_id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.UserID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, result.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DevAuth trusts the X-User-Id header (or user_id query). Local runs only,
// never wired when an identity service URL is configured.
func DevAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := headerOrQuery(r, "X-User-Id", "user_id")
		if userID == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerOrQuery(r *http.Request, header, query string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(query)
}
