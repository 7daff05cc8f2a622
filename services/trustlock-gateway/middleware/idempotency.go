package middleware

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"glittr/services/trustlock-gateway/models"
)

// WithIdempotency replays the stored response for a previously seen
// Idempotency-Key instead of executing the mutation again. The key is bound
// to a digest of the request; a seen key arriving with a different method,
// path or body is answered with 409 instead of a replay. Requests without
// the header pass through untouched.
func WithIdempotency(db *gorm.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		digest, err := requestDigest(r)
		if err != nil {
			http.Error(w, "unreadable request body", http.StatusBadRequest)
			return
		}

		var record models.IdempotencyKey
		if err := db.First(&record, "key = ?", key).Error; err == nil {
			if record.RequestHash != digest {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, `{"error":"idempotency key reused with a different request"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotent-Replay", "true")
			w.WriteHeader(record.Status)
			_, _ = w.Write([]byte(record.Response))
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		// Only successful outcomes are cached; a failed mutation may be
		// retried with the same key.
		if status >= http.StatusInternalServerError {
			return
		}
		_ = db.Create(&models.IdempotencyKey{
			Key:         key,
			RequestID:   uuid.NewString(),
			Method:      r.Method,
			Path:        r.URL.Path,
			RequestHash: digest,
			Status:      status,
			Response:    recorder.buf.String(),
			CreatedAt:   time.Now(),
		}).Error
	})
}

// requestDigest fingerprints the request the key arrived with. The body is
// read in full and restored so downstream handlers see it unchanged.
func requestDigest(r *http.Request) (string, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	h := blake3.New(32, nil)
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type responseRecorder struct {
	http.ResponseWriter
	buf    writeBuffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.append(b)
	return rr.ResponseWriter.Write(b)
}

type writeBuffer struct {
	data []byte
}

func (b *writeBuffer) append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *writeBuffer) String() string {
	return string(b.data)
}
