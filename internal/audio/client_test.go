package audio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPIs struct {
	textCalls atomic.Int32
	ttsCalls  atomic.Int32
	textFails int32 // number of leading 503s

	mu        sync.Mutex
	lastVoice string
	lastKey   string
	lastAuth  string
	lastText  string
}

func (f *fakeAPIs) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		n := f.textCalls.Add(1)
		if n <= f.textFails {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastText = req.Messages[1].Content
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  You drift above the clouds.  "}}]}`))
	})
	mux.HandleFunc("/tts/", func(w http.ResponseWriter, r *http.Request) {
		f.ttsCalls.Add(1)
		f.mu.Lock()
		f.lastVoice = filepath.Base(r.URL.Path)
		f.lastKey = r.Header.Get("xi-api-key")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(srv *httptest.Server, dir string) Options {
	return Options{
		TextEndpoint: srv.URL + "/chat",
		TextAPIKey:   "text-key",
		TextModel:    "deepseek-chat",
		TTSEndpoint:  srv.URL + "/tts",
		TTSAPIKey:    "tts-key",
		Voice:        "voice-1",
		Timeout:      2 * time.Second,
		RetryWait:    time.Millisecond,
		OutputDir:    dir,
	}
}

func TestSynthesize_TextAndSpeech(t *testing.T) {
	apis := &fakeAPIs{}
	srv := apis.server(t)
	dir := t.TempDir()

	res, err := New(testOptions(srv, dir), nil).Synthesize(context.Background(), "flying airplane", "high above mountains")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "You drift above the clouds.", res.Narration)
	require.Len(t, res.AudioRefs, 1)

	data, err := os.ReadFile(filepath.Join(dir, res.AudioRefs[0]))
	require.NoError(t, err)
	assert.Equal(t, "ID3fake-mp3", string(data))
	apis.mu.Lock()
	defer apis.mu.Unlock()
	assert.Equal(t, "voice-1", apis.lastVoice)
	assert.Equal(t, "tts-key", apis.lastKey)
	assert.Equal(t, "Bearer text-key", apis.lastAuth)
	assert.Contains(t, apis.lastText, "high above mountains")
	assert.Contains(t, apis.lastText, "flying airplane")
}

func TestSynthesize_TextOnlyWithoutTTSKey(t *testing.T) {
	apis := &fakeAPIs{}
	srv := apis.server(t)
	opts := testOptions(srv, t.TempDir())
	opts.TTSAPIKey = ""

	res, err := New(opts, nil).Synthesize(context.Background(), "", "a quiet beach")
	require.NoError(t, err)
	assert.Equal(t, StatusTextOnly, res.Status)
	assert.Empty(t, res.AudioRefs)
	assert.EqualValues(t, 0, apis.ttsCalls.Load())
}

func TestSynthesize_NotConfigured(t *testing.T) {
	_, err := New(Options{}, nil).Synthesize(context.Background(), "flying", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSynthesize_EmptyPrompt(t *testing.T) {
	_, err := New(Options{TextAPIKey: "k"}, nil).Synthesize(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestSynthesize_RetriesServerErrors(t *testing.T) {
	apis := &fakeAPIs{textFails: 1}
	srv := apis.server(t)
	opts := testOptions(srv, t.TempDir())
	opts.Retries = 2

	res, err := New(opts, nil).Synthesize(context.Background(), "", "forest")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.EqualValues(t, 2, apis.textCalls.Load())
}

func TestSynthesize_ServerErrorSurfaces(t *testing.T) {
	apis := &fakeAPIs{textFails: 10}
	srv := apis.server(t)

	_, err := New(testOptions(srv, t.TempDir()), nil).Synthesize(context.Background(), "", "forest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestArtifactPath(t *testing.T) {
	p, err := ArtifactPath("out", "abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "abc.mp3"), p)

	for _, bad := range []string{"", "../x.mp3", "a/b.mp3", ".hidden.mp3", "x.txt"} {
		_, err := ArtifactPath("out", bad)
		assert.ErrorIs(t, err, ErrBadArtifact, bad)
	}
}
