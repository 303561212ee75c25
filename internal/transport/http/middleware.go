package transporthttp

import (
	"crypto/subtle"
	"io"
	"mime"
	"net/http"
)

// BodyLimit limits request bodies to maxBytes.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects POST bodies that are not application/json. Parameters such as
// charset are allowed.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				WriteProblem(w, http.StatusUnsupportedMediaType, "unsupported media type", "expected application/json", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF applies the double-submit check on unsafe methods: the X-CSRFToken
// header must equal the csrftoken cookie.
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		ck, err := r.Cookie(CSRFCookie)
		tok := r.Header.Get(CSRFHeader)
		if err != nil || ck.Value == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(tok)) != 1 {
			WriteProblem(w, http.StatusForbidden, "csrf failed", "missing or mismatched CSRF token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DrainBody fully reads and closes request bodies (handler helper).
func DrainBody(r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}
}
