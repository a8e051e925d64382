package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/client"
	"github.com/stevegt/oracle/core"
	"github.com/stevegt/oracle/loaders"
	"github.com/stevegt/oracle/mock"
)

// oracle runs the cli with the given stdin and arguments and returns
// stdout, stderr and err.  setup, if not nil, can adjust the config
// before the run.
func oracle(stdin string, setup func(*CliConfig), args ...string) (stdout, stderr bytes.Buffer, err error) {
	defer Return(&err)

	// pass stdio to the CLI
	config := NewCliConfig()
	config.Stdin = strings.NewReader(stdin)
	config.Stdout = &stdout
	config.Stderr = &stderr
	config.EnvFile = ""
	if setup != nil {
		setup(config)
	}

	// get the caller's filename and line number
	_, fn, line, _ := runtime.Caller(1)

	var exitRc int
	// replace the kong exit function with one that doesn't exit
	config.Exit = func(rc int) {
		if rc != 0 {
			msg := Spf("%s:%d rc: %v\nstderr:\n%s", fn, line, rc, stderr.String())
			fmt.Println(msg)
			exitRc = rc
		}
	}

	// run the CLI
	rc, err := Cli(args, config)
	if err == nil && (exitRc != 0 || rc != 0) {
		err = fmt.Errorf("rc: %v exitRc: %v", rc, exitRc)
	}
	return
}

// withMock makes the chat command stream from mc.
func withMock(mc *mock.Client) func(*CliConfig) {
	return func(config *CliConfig) {
		config.NewOracle = func() *core.Oracle {
			o := core.New()
			o.NewStreamClient = func(spec *core.ProviderSpec, baseURL, apiKey string) client.StreamClient {
				return mc
			}
			return o
		}
	}
}

// mkFile creates a file with the given name and content.
func mkFile(t *testing.T, name, content string) {
	err := os.WriteFile(name, []byte(content), 0644)
	Tassert(t, err == nil, "error writing file: %v", err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := oracle("", nil, "version")
	Tassert(t, err == nil, "version failed: %v", err)
	Tassert(t, strings.Contains(stdout.String(), core.Version), "missing version: %q", stdout.String())
}

func TestModels(t *testing.T) {
	stdout, _, err := oracle("", nil, "models")
	Tassert(t, err == nil, "models failed: %v", err)
	out := stdout.String()
	for _, want := range []string{"Groq", "OpenAI", "DeepSeek", "llama-3.3-70b-versatile", "deepseek-chat"} {
		Tassert(t, strings.Contains(out, want), "models output lacks %q:\n%s", want, out)
	}
}

func TestTc(t *testing.T) {
	stdout, _, err := oracle("hello world\n", nil, "tc")
	Tassert(t, err == nil, "tc failed: %v", err)
	Tassert(t, stdout.String() == "2\n", "unexpected token count: %q", stdout.String())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "the moon is made of cheese")
	csv := filepath.Join(dir, "people.csv")
	mkFile(t, csv, "name,age\nana,31\n")

	stdout, _, err := oracle("", nil, "load", txt)
	Tassert(t, err == nil, "load failed: %v", err)
	Tassert(t, strings.Contains(stdout.String(), "made of cheese"), "unexpected text: %q", stdout.String())

	stdout, _, err = oracle("", nil, "load", csv)
	Tassert(t, err == nil, "load failed: %v", err)
	Tassert(t, strings.Contains(stdout.String(), "name: ana\nage: 31"), "unexpected csv text: %q", stdout.String())

	// forcing a kind overrides the guess
	stdout, _, err = oracle("", nil, "load", "-t", "txt", csv)
	Tassert(t, err == nil, "load failed: %v", err)
	Tassert(t, strings.Contains(stdout.String(), "name,age"), "unexpected raw text: %q", stdout.String())

	_, _, err = oracle("", nil, "load", "-t", "spreadsheet", csv)
	Tassert(t, err != nil, "bogus kind accepted")

	_, _, err = oracle("", nil, "load", filepath.Join(dir, "missing.txt"))
	Tassert(t, err != nil, "missing file accepted")
}

func TestLoadCache(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "cached text")
	cache := filepath.Join(dir, "cache", "docs.db")

	_, _, err := oracle("", nil, "--cache", cache, "load", txt)
	Tassert(t, err == nil, "load failed: %v", err)
	stdout, _, err := oracle("", nil, "--cache", cache, "version")
	Tassert(t, err == nil, "version failed: %v", err)
	Tassert(t, strings.Contains(stdout.String(), "1 documents"), "unexpected version output: %q", stdout.String())

	_, _, err = oracle("", nil, "--cache", cache, "--no-cache", "load", txt)
	Tassert(t, err == nil, "load failed: %v", err)
}

func TestChatPrompt(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "the moon is made of cheese")

	mc := mock.NewClient()
	mc.SetResponse("gemma2-9b-it", "it is made of cheese")
	stdout, stderr, err := oracle("", withMock(mc),
		"chat", "-p", "Groq", "-M", "gemma2-9b-it", "-k", "k", "-m", "what is the moon made of?", txt)
	Tassert(t, err == nil, "chat failed: %v\n%s", err, stderr.String())
	Tassert(t, stdout.String() == "it is made of cheese\n", "unexpected reply: %q", stdout.String())
	Tassert(t, strings.Contains(stderr.String(), "gemma2-9b-it from Groq"), "no load notice: %q", stderr.String())

	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	req := mc.Requests[0]
	Tassert(t, req.Input == "what is the moon made of?", "unexpected input: %q", req.Input)
	Tassert(t, strings.Contains(req.Sysmsg, "the moon is made of cheese"), "document not grounded: %q", req.Sysmsg)
	Tassert(t, strings.Contains(req.Sysmsg, "TXT"), "kind label missing: %q", req.Sysmsg)
}

func TestChatDefaultModel(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	t.Setenv("GROQ_API_KEY", "")
	mc := mock.NewClient()
	_, stderr, err := oracle("", withMock(mc), "chat", "-m", "hi", txt)
	Tassert(t, err == nil, "chat failed: %v", err)
	Tassert(t, strings.Contains(stderr.String(), "GROQ_API_KEY"), "no key warning: %q", stderr.String())
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	Tassert(t, mc.Requests[0].Model == "llama-3.3-70b-versatile", "unexpected model: %q", mc.Requests[0].Model)
}

func TestChatRepl(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	mc := mock.NewClient()
	mc.SetResponse("gpt-4o-mini", "ok")
	stdin := "first\n\nsecond\n/history\n/clear\nthird\n/quit\nnever\n"
	stdout, stderr, err := oracle(stdin, withMock(mc), "chat", "-p", "OpenAI", "-k", "k", txt)
	Tassert(t, err == nil, "chat failed: %v\n%s", err, stderr.String())

	Tassert(t, len(mc.Requests) == 3, "expected 3 requests, got %d", len(mc.Requests))
	Tassert(t, len(mc.Requests[0].History) == 0, "first turn has history")
	Tassert(t, len(mc.Requests[1].History) == 2, "second turn history: %d", len(mc.Requests[1].History))
	Tassert(t, len(mc.Requests[2].History) == 0, "history survived /clear")
	Tassert(t, strings.Contains(stdout.String(), "human: first\nai: ok\n"), "no transcript: %q", stdout.String())
	Tassert(t, !strings.Contains(stdout.String(), "never"), "read past /quit")
}

func TestChatUnreachable(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	mc := mock.NewClient()
	mc.Err = fmt.Errorf("connection refused")
	_, stderr, err := oracle("", withMock(mc), "chat", "-k", "k", "-m", "hi", txt)
	Tassert(t, err != nil, "failed turn not reported in rc")
	Tassert(t, strings.Contains(stderr.String(), "Failed to get a response from Groq"), "unexpected stderr: %q", stderr.String())
}

func TestChatInvalidSelection(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	mc := mock.NewClient()
	_, _, err := oracle("", withMock(mc), "chat", "-p", "Bogus", "-M", "x", "-m", "hi", txt)
	Tassert(t, err != nil, "bogus provider accepted")
	_, _, err = oracle("", withMock(mc), "chat", "-p", "Groq", "-M", "nonexistent", "-m", "hi", txt)
	Tassert(t, err != nil, "bogus model accepted")
	Tassert(t, len(mc.Requests) == 0, "provider was called")
}

func TestChatMalformed(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"unexpected": true}`)
	}))
	defer server.Close()
	t.Setenv("ORACLE_DEEPSEEK_URL", server.URL)

	stdout, stderr, err := oracle("", nil, "chat", "-p", "DeepSeek", "-k", "k", "-m", "hi", txt)
	Tassert(t, err != nil, "malformed reply not reported in rc")
	Tassert(t, strings.Contains(stdout.String(), core.ApologyReply), "no apology: %q", stdout.String())
	Tassert(t, strings.Contains(stderr.String(), `{"unexpected": true}`), "raw body not logged: %q", stderr.String())
	Tassert(t, strings.Contains(stderr.String(), "Failed to extract a response from DeepSeek"), "no warning: %q", stderr.String())
}

func TestGuessKind(t *testing.T) {
	cases := map[string]string{
		"https://example.com/page":                    "site",
		"http://example.com":                          "site",
		"https://www.youtube.com/watch?v=OWBT5EEikj8": "youtube",
		"https://youtu.be/OWBT5EEikj8":                "youtube",
		"report.PDF":                                  "pdf",
		"data/people.csv":                             "csv",
		"notes.md":                                    "txt",
		"OWBT5EEikj8":                                 "youtube",
		"dQw4w9WgXcQ":                                 "youtube",
		"notes.txt.md":                                "txt",
	}
	for in, want := range cases {
		got := guessKind(in)
		Tassert(t, got == want, "guessKind(%q) = %q, want %q", in, got, want)
	}
}

func TestGuessKindPrefersExistingFile(t *testing.T) {
	wd, err := os.Getwd()
	Tassert(t, err == nil)
	dir := t.TempDir()
	err = os.Chdir(dir)
	Tassert(t, err == nil)
	defer os.Chdir(wd)

	Tassert(t, guessKind("OWBT5EEikj8") == "youtube")
	mkFile(t, "OWBT5EEikj8", "a file that happens to look like an id")
	Tassert(t, guessKind("OWBT5EEikj8") == "txt", "existing file guessed as video")
}

func TestLoadBareVideoID(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		Tassert(t, r.URL.Query().Get("v") == "OWBT5EEikj8", "video id %q", r.URL.Query().Get("v"))
		fmt.Fprintf(w, `<script>var x = {"captionTracks":[{"baseUrl":"%s/tt","languageCode":"en"}]};</script>`, server.URL)
	})
	mux.HandleFunc("/tt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript><text start="0">hello</text><text start="1">there</text></transcript>`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	mc := mock.NewClient()
	setup := func(config *CliConfig) {
		withMock(mc)(config)
		newOracle := config.NewOracle
		config.NewOracle = func() *core.Oracle {
			o := newOracle()
			o.Loader.Video = &loaders.Youtube{WatchURL: server.URL + "/watch"}
			return o
		}
	}
	_, stderr, err := oracle("", setup, "chat", "-k", "k", "-m", "hi", "OWBT5EEikj8")
	Tassert(t, err == nil, "chat failed: %v\n%s", err, stderr.String())
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	Tassert(t, strings.Contains(mc.Requests[0].Sysmsg, "hello there"), "transcript not grounded: %q", mc.Requests[0].Sysmsg)
	Tassert(t, strings.Contains(mc.Requests[0].Sysmsg, "Youtube document"), "kind label missing: %q", mc.Requests[0].Sysmsg)
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("broken pipe")
}

func TestChatStdoutFailure(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	mkFile(t, txt, "text")

	mc := mock.NewClient()
	setup := func(config *CliConfig) {
		withMock(mc)(config)
		config.Stdout = failWriter{}
	}
	_, stderr, err := oracle("", setup, "chat", "-k", "k", "-m", "hi", txt)
	Tassert(t, err != nil, "write failure not reported in rc")
	Tassert(t, strings.Contains(stderr.String(), "writing reply"), "unexpected stderr: %q", stderr.String())
	Tassert(t, !strings.Contains(stderr.String(), "API key"), "write failure blamed on provider: %q", stderr.String())
}
