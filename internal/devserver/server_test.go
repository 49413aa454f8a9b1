// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/config"
)

const sampleDoc = "Sterile technique prevents infection. Hands are washed before surgery. " +
	"Gloves are changed between patients. Instruments are autoclaved. " +
	"Lesson plans guide the classroom."

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := New(config.DevServerConfig{Addr: "127.0.0.1:0", DataDir: t.TempDir()}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, srv, req)
}

func serve(t *testing.T, srv *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return rec, out
}

func uploadRequest(t *testing.T, filename, user string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if user != "" {
		require.NoError(t, mw.WriteField("user_id", user))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, backend.PathUpload, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t)

	rec, out := serve(t, srv, uploadRequest(t, "notes.txt", "u1", []byte(sampleDoc)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, MsgUploaded, out["message"])

	_, err := os.Stat(filepath.Join(srv.uploadDir, "u1", "notes.txt"))
	assert.NoError(t, err)
}

func TestUpload_Errors(t *testing.T) {
	srv := newTestServer(t)

	rec, out := serve(t, srv, uploadRequest(t, "", "u1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgNoFile, out["message"])

	rec, out = serve(t, srv, uploadRequest(t, "../..", "u1", []byte(sampleDoc)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgEmptyFilename, out["message"])

	rec, out = serve(t, srv, uploadRequest(t, "scan.bin", "u1", []byte{0xff, 0xfe, 0x00}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "not a UTF-8 text document")
}

func TestQuery_AnswersFromUploadedDocument(t *testing.T) {
	srv := newTestServer(t)
	serve(t, srv, uploadRequest(t, "notes.txt", "u1", []byte(sampleDoc)))

	rec, out := postJSON(t, srv, backend.PathQuery, map[string]string{"query": "why wash hands before surgery", "user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out["answer"], "Hands are washed before surgery.")
	assert.Regexp(t, `^(High|Medium) \(\d\.\d\d\)$`, out["confidence"])
	assert.Equal(t, []interface{}{"notes.txt — Page 1 (Chunk 1)"}, out["sources"])
}

func TestQuery_NoMatchAndEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec, out := postJSON(t, srv, backend.PathQuery, map[string]string{"query": "anything", "user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoMatchAnswer, out["answer"])
	assert.Equal(t, "Low (0.00)", out["confidence"])
	assert.Equal(t, []interface{}{}, out["sources"])

	rec, out = postJSON(t, srv, backend.PathQuery, map[string]string{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, MsgEmptyQuery, out["answer"])
}

type failingAnswerer struct{}

func (failingAnswerer) Ingest(context.Context, string, string, []byte) (int, error) { return 0, nil }
func (failingAnswerer) Answer(context.Context, string, string) (Result, error) {
	return Result{}, errors.New("model offline")
}

func TestQuery_AnswererFailure(t *testing.T) {
	srv := newTestServer(t, WithAnswerer(failingAnswerer{}))

	rec, out := postJSON(t, srv, backend.PathQuery, map[string]string{"query": "hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgSynthesisError, out["answer"])
	assert.Equal(t, "model offline", out["error"])
}

func TestHistoryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	for _, q := range []string{"first", "second", "third"} {
		postJSON(t, srv, backend.PathQuery, map[string]string{"query": q, "user_id": "u1"})
	}
	postJSON(t, srv, backend.PathQuery, map[string]string{"query": "someone else", "user_id": "u2"})

	history := func(user string) []interface{} {
		req := httptest.NewRequest(http.MethodGet, backend.PathHistory+"?user_id="+user, nil)
		rec, out := serve(t, srv, req)
		require.Equal(t, http.StatusOK, rec.Code)
		list, _ := out["history"].([]interface{})
		return list
	}

	list := history("u1")
	require.Len(t, list, 3)
	newest := list[0].(map[string]interface{})
	assert.Equal(t, "third", newest["query"])
	assert.Equal(t, "Low (0.00)", newest["confidence"])

	// Another user's id deletes nothing.
	id := newest["id"].(float64)
	_, out := postJSON(t, srv, backend.PathHistoryDelete, map[string]interface{}{"id": id, "user_id": "u2"})
	assert.Equal(t, float64(0), out["deleted"])

	_, out = postJSON(t, srv, backend.PathHistoryDelete, map[string]interface{}{"id": id, "user_id": "u1"})
	assert.Equal(t, float64(1), out["deleted"])
	assert.Len(t, history("u1"), 2)

	rec, out := postJSON(t, srv, backend.PathHistoryDelete, map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgMissingID, out["message"])

	_, out = postJSON(t, srv, backend.PathHistoryClear, map[string]string{"user_id": "u1"})
	assert.Equal(t, float64(2), out["deleted"])
	assert.Empty(t, history("u1"))
	assert.Len(t, history("u2"), 1)
}

func TestHistory_DefaultsToGuest(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv, backend.PathQuery, map[string]string{"query": "hi"})

	req := httptest.NewRequest(http.MethodGet, backend.PathHistory, nil)
	_, out := serve(t, srv, req)
	assert.Len(t, out["history"], 1)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := newTestServer(t)
	origin := config.Default().DevServer.AllowOrigins[0]

	req := httptest.NewRequest(http.MethodOptions, backend.PathQuery, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
}

// The real client must be able to drive the dev server end to end.
func TestClientAgainstDevServer(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := backend.New(config.BackendConfig{URL: ts.URL, TimeoutSeconds: 5})
	ctx := context.Background()

	msg, err := client.Upload(ctx, "u1", "notes.txt", strings.NewReader(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, MsgUploaded, msg)

	ans, err := client.Query(ctx, "u1", "gloves between patients")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Gloves are changed between patients.")
	assert.NotEmpty(t, ans.Confidence)

	records, err := client.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	n, err := client.DeleteHistory(ctx, "u1", records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"notes.txt", "notes.txt"},
		{"my notes.txt", "my_notes.txt"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\docs\file.txt`, "C_docs_file.txt"},
		{"ünïcode.txt", "ncode.txt"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SecureFilename(tt.in); got != tt.want {
			t.Errorf("SecureFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
