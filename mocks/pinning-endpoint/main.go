// Mock pinning endpoint implementing the Pinata-compatible surface the
// service uploads certificate artifacts to. Returned CIDs are derived from
// the content, so re-uploading identical bytes yields the identical CID,
// matching real content-addressed behavior.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8082"
	defaultJWT       = "pinning-endpoint-secret-token"
	defaultLatencyMs = "50"
)

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	jwt       = getEnv("PINNING_JWT", defaultJWT)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/pinning/pinFileToIPFS", handlePinFile)
	http.HandleFunc("/pinning/pinJSONToIPFS", handlePinJSON)

	log.Printf("Mock pinning endpoint starting on port %s", port)
	log.Printf("JWT: %s", jwt)
	log.Printf("Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "pinning-endpoint",
		"version": "1.0.0",
	})
}

func handlePinFile(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r) {
		return
	}
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "expected multipart form with a file part")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing file part")
		return
	}
	defer file.Close()

	// Magic file names let tests force failure paths.
	if strings.Contains(header.Filename, "FAIL500") {
		writeError(w, http.StatusInternalServerError, "internal", "forced failure")
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable file part")
		return
	}
	respondPinned(w, payload)
}

func handlePinJSON(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r) {
		return
	}
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "empty body")
		return
	}
	if strings.Contains(string(payload), "FAIL500") {
		writeError(w, http.StatusInternalServerError, "internal", "forced failure")
		return
	}
	respondPinned(w, payload)
}

func authorize(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if auth != "Bearer "+jwt {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
		return false
	}
	return true
}

func respondPinned(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pinResponse{
		IpfsHash:  contentCID(payload),
		PinSize:   int64(len(payload)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// contentCID derives a CIDv0-shaped identifier from the content digest. Not
// a real multihash, but stable for identical content like the real thing.
func contentCID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "Qm" + hex.EncodeToString(sum[:22])
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: kind, Message: msg, Code: code})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key, fallback string) int {
	v := getEnv(key, fallback)
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	return n
}
