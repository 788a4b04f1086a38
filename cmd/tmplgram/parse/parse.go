// Package parse implements the `tmplgram parse` subcommand: it compiles a
// grammar from a config file and parses input files against it.
package parse

import (
	"context"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/tmplgram/pkg/diagnostic"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/template"
	"github.com/walteh/tmplgram/pkg/tree"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

type Handler struct {
	grammarPath string
	start       string
	format      string
	debug       bool

	fs  afero.Fs
	out io.Writer
}

func NewParseCommand() *cobra.Command {
	me := &Handler{
		fs:  afero.NewOsFs(),
		out: os.Stdout,
	}

	cmd := &cobra.Command{
		Use:   "parse --grammar grammar.hcl <file-or-glob>...",
		Short: "parse input files against a grammar",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.Flags().StringVar(&me.grammarPath, "grammar", "", "grammar config file (HCL or YAML)")
	cmd.Flags().StringVar(&me.start, "start", "", "start rule (defaults to the grammar's)")
	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("grammar")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if me.debug {
			level = zerolog.TraceLevel
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
		ctx := logger.WithContext(cmd.Context())

		return me.Run(ctx, args)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, patterns []string) error {
	cfg, err := LoadGrammarConfig(me.fs, me.grammarPath)
	if err != nil {
		return errors.Errorf("loading grammar %s: %w", me.grammarPath, err)
	}

	g, err := cfg.Compile()
	if err != nil {
		return err
	}

	parser, err := template.NewParser(g)
	if err != nil {
		return errors.Errorf("constructing parser: %w", err)
	}

	start := me.start
	if start == "" {
		start = cfg.StartRule()
	}

	files, err := me.expand(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %v", patterns)
	}

	zerolog.Ctx(ctx).Info().
		Int("files", len(files)).
		Str("start", start).
		Msg("parsing inputs")

	// Every file is attempted; failures are reported per file and combined.
	var result error
	for _, file := range files {
		if err := me.parseFile(ctx, parser, start, file); err != nil {
			result = multierr.Append(result, errors.Errorf("parsing %s: %w", file, err))
		}
	}
	return result
}

func (me *Handler) parseFile(ctx context.Context, parser *template.Parser, start, file string) error {
	data, err := afero.ReadFile(me.fs, file)
	if err != nil {
		return errors.Errorf("reading input: %w", err)
	}
	text := string(data)

	node, err := parser.ParseText(ctx, file, text, start)
	if err != nil {
		me.report(file, text, err)
		return err
	}

	switch me.format {
	case "json":
		formatter := &diagnostic.JSONFormatter{}
		// Successful parses emit the tree rendered as one info diagnostic,
		// so the output stays one JSON document per file either way.
		out, ferr := formatter.Format([]diagnostic.Diagnostic{{
			Message:  tree.Pretty(node),
			Severity: diagnostic.Info,
			File:     file,
		}})
		if ferr != nil {
			return ferr
		}
		io.WriteString(me.out, out+"\n")
	default:
		io.WriteString(me.out, tree.Pretty(node))
	}
	return nil
}

// report renders a parse failure as a diagnostic on stderr-bound output.
func (me *Handler) report(file, text string, err error) {
	d := diagnostic.FromError(err)
	if d.File == "" {
		d.File = file
	}

	var formatter diagnostic.Formatter
	switch me.format {
	case "json":
		formatter = &diagnostic.JSONFormatter{}
	default:
		formatter = &diagnostic.TextFormatter{Source: source.NewIndex(file, text)}
	}
	out, ferr := formatter.Format([]diagnostic.Diagnostic{d})
	if ferr != nil {
		return
	}
	io.WriteString(me.out, out)
	if me.format == "json" {
		io.WriteString(me.out, "\n")
	}
}

// expand resolves the given paths and doublestar globs against the handler's
// filesystem, deduplicated and sorted.
func (me *Handler) expand(patterns []string) ([]string, error) {
	iofs := afero.NewIOFS(me.fs)
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(iofs, pattern)
		if err != nil {
			return nil, errors.Errorf("bad glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := fs.Stat(iofs, m)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
