package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/client"
	"github.com/stevegt/oracle/core"
	"github.com/stevegt/oracle/util"
)

type cmdChat struct {
	// oracle chat -p Groq -M gemma2-9b-it -t pdf report.pdf
	Provider string `short:"p" default:"Groq" help:"Provider to chat with; see 'models'."`
	Model    string `short:"M" help:"Model to use; defaults to the provider's first model."`
	APIKey   string `name:"api-key" short:"k" help:"API key; defaults to the provider's environment variable."`
	Kind     string `short:"t" help:"Document kind: site, youtube, pdf, csv or txt.  Guessed from the source if omitted."`
	Prompt   string `short:"m" help:"Send this single message instead of reading messages from stdin."`
	Source   string `arg:"" help:"URL, Youtube video id, or path of the document to ground the chat on."`
}

type cmdLoad struct {
	Kind   string `short:"t" help:"Document kind: site, youtube, pdf, csv or txt.  Guessed from the source if omitted."`
	Source string `arg:"" help:"URL, Youtube video id, or path of the document to load."`
}

type cmdModels struct{}

type cmdTc struct{}

type cmdVersion struct{}

// Args is the command tree.
type Args struct {
	Chat    cmdChat    `cmd:"" help:"Load a document and chat about it; one message per stdin line."`
	Load    cmdLoad    `cmd:"" help:"Load a document and print its text on stdout."`
	Models  cmdModels  `cmd:"" help:"List the available providers and models."`
	Tc      cmdTc      `cmd:"" help:"Calculate the token count of stdin."`
	Version cmdVersion `cmd:"" help:"Show version of oracle and its document cache."`
	Cache   string     `help:"Path of the document cache; empty disables caching.  Defaults to the ORACLE_CACHE environment variable."`
	NoCache bool       `help:"Do not read or write the document cache."`
	Verbose bool       `short:"v" help:"Show debug and progress information on stderr."`
}

// CliConfig contains the configuration for oracle's cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// EnvFile is loaded into the environment if it exists.
	EnvFile string
	// NewOracle builds the orchestrator for the chat command.
	NewOracle func() *core.Oracle
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "oracle",
		Description: "Chat with a language model about a web page, Youtube video, PDF, CSV or text file.",
		Version:     core.Version,
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		EnvFile:     ".env",
		NewOracle:   core.New,
	}
}

// cmdInSlice returns true if cmd is in cmds. This function only looks
// at the first word in cmd.
func cmdInSlice(cmd string, cmds []string) bool {
	first := strings.Split(cmd, " ")[0]
	return util.StringInSlice(first, cmds)
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	loadEnv(config.EnvFile)

	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
		},
	}

	var cli Args
	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return 1, err
	}

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)

	// commands that may read the document cache
	cacheCmds := []string{"chat", "load", "version"}
	var cache *core.DocCache
	cachePath := cli.Cache
	if cachePath == "" {
		cachePath = envi.String("ORACLE_CACHE", "")
	}
	if cachePath != "" && !cli.NoCache && cmdInSlice(cmd, cacheCmds) {
		cache, err = core.OpenDocCache(cachePath)
		Ck(err)
		defer cache.Close()
	}

	switch cmd {
	case "models":
		for _, spec := range core.NewProviders().List() {
			Pf("%s (%s)\n", spec.Name, spec.Strategy)
			for _, model := range spec.Models {
				Pf("    %s\n", model)
			}
		}
	case "version":
		Pf("oracle version %s\n", config.Version)
		if cache != nil {
			n, err := cache.Len()
			Ck(err)
			Pf("document cache %s: version %s, %d documents\n", cachePath, core.CacheVersion, n)
		}
	case "tc":
		// get content from stdin and emit token count on stdout
		buf, err := io.ReadAll(config.Stdin)
		Ck(err)
		in := strings.TrimSpace(string(buf))
		count, err := core.TokenCount(in)
		Ck(err)
		Pf("%d\n", count)
	case "load <source>":
		kind, desc, err := source(cli.Load.Kind, cli.Load.Source)
		Ck(err)
		loader := core.NewLoader()
		loader.Cache = cache
		loader.TmpDir = envi.String("ORACLE_TMPDIR", "")
		text, err := loader.Load(context.Background(), kind, desc)
		Ck(err)
		Pl(text)
		warnChallenge(config.Stderr, text)
	case "chat <source>":
		rc, err = chat(config, &cli.Chat, cache)
		Ck(err)
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", ctx.Command())
		rc = 1
		return
	}
	return
}

// loadEnv reads fn into the environment, leaving variables that are
// already set alone.
func loadEnv(fn string) {
	if fn == "" {
		return
	}
	_, err := os.Stat(fn)
	if err != nil {
		Debug("no env file %s", fn)
		return
	}
	err = godotenv.Load(fn)
	if err != nil {
		Debug("cannot load env file %s: %v", fn, err)
	}
}

// chat binds a session and runs the conversation.  A failed turn is
// reported on stderr and the conversation continues; rc is 1 if any
// turn failed.
func chat(config *CliConfig, args *cmdChat, cache *core.DocCache) (rc int, err error) {
	defer Return(&err)

	kind, desc, err := source(args.Kind, args.Source)
	Ck(err)

	o := config.NewOracle()
	o.Stderr = config.Stderr
	o.Loader.Cache = cache
	o.Loader.TmpDir = envi.String("ORACLE_TMPDIR", "")
	if o.Endpoints == nil {
		o.Endpoints = make(map[string]string)
	}

	model := args.Model
	apiKey := args.APIKey
	for _, spec := range o.Providers.List() {
		if spec.Name != args.Provider {
			continue
		}
		if model == "" {
			model = spec.Models[0]
		}
		if apiKey == "" {
			apiKey = envi.String(spec.KeyEnv, "")
			if apiKey == "" {
				Fpf(config.Stderr, "Warning: %s environment variable not set\n", spec.KeyEnv)
			}
		}
		// e.g. ORACLE_DEEPSEEK_URL
		u := envi.String("ORACLE_"+strings.ToUpper(spec.Name)+"_URL", "")
		if u != "" {
			o.Endpoints[spec.Name] = u
		}
	}

	ctx := context.Background()
	sel := core.Selection{
		Provider: args.Provider,
		Model:    model,
		APIKey:   apiKey,
		Kind:     kind,
		Source:   desc,
	}
	sess, err := o.Initialize(ctx, sel)
	if err != nil {
		return 1, err
	}
	Fpf(config.Stderr, "Model %s from %s loaded with a %v document (%d prompt tokens)\n",
		sess.Model, sess.Provider.Name, sess.Kind, sess.Tokens)
	warnChallenge(config.Stderr, sess.Document)

	turn := func(input string) {
		_, err := o.Submit(ctx, input, config.Stdout)
		Pf("\n")
		switch {
		case err == nil:
		case errors.Is(err, client.ErrWrite):
			Fpf(config.Stderr, "Error: %v\n", err)
			rc = 1
		case errors.Is(err, core.ErrMalformedResponse):
			Fpf(config.Stderr, "Failed to extract a response from %s; check the API response structure.\n", sess.Provider.Name)
			rc = 1
		default:
			Fpf(config.Stderr, "Failed to get a response from %s; check your API key and try again: %v\n", sess.Provider.Name, err)
			rc = 1
		}
	}

	if args.Prompt != "" {
		turn(strings.TrimSpace(args.Prompt))
		return
	}

	scanner := bufio.NewScanner(config.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/clear":
			o.Clear()
			Fpf(config.Stderr, "conversation cleared\n")
			continue
		case "/history":
			for _, t := range o.History() {
				Pf("%s: %s\n", t.Role, t.Content)
			}
			continue
		}
		turn(line)
	}
	err = scanner.Err()
	Ck(err)
	return
}

// source turns a command line source argument into a document kind
// and descriptor.  File kinds read the file here so the loader sees
// the same bytes an upload would carry.
func source(kindName, src string) (kind core.DocumentKind, desc *core.SourceDescriptor, err error) {
	defer Return(&err)
	if kindName == "" {
		kindName = guessKind(src)
	}
	kind, err = core.ParseKind(kindName)
	if err != nil {
		return
	}
	switch kind {
	case core.KindSite:
		desc = core.SiteSource(src)
	case core.KindVideo:
		desc = core.VideoSource(util.VideoID(src))
	default:
		buf, err := os.ReadFile(src)
		Ck(err)
		desc = core.FileSource(filepath.Base(src), buf)
	}
	return
}

// bareVideoID matches a Youtube video id such as OWBT5EEikj8.
var bareVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// guessKind picks a document kind from the shape of src.  A bare
// video id wins over txt unless a file by that name exists.
func guessKind(src string) string {
	if bareVideoID.MatchString(src) {
		_, err := os.Stat(src)
		if err != nil {
			return "youtube"
		}
	}
	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if util.VideoID(src) != src {
			return "youtube"
		}
		return "site"
	}
	switch strings.ToLower(filepath.Ext(src)) {
	case ".pdf":
		return "pdf"
	case ".csv":
		return "csv"
	}
	return "txt"
}

func warnChallenge(stderr io.Writer, text string) {
	if core.IsChallengePage(text) {
		Fpf(stderr, "Warning: the page looks like an anti-bot challenge; try loading the Oracle again.\n")
	}
}
