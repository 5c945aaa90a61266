// Package cli implements the lingua command line interface.
package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mehmetkoksal-w/lingua/internal/annotations"
	"github.com/mehmetkoksal-w/lingua/internal/config"
	"github.com/mehmetkoksal-w/lingua/internal/logger"
)

func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "version", "--version", "-v":
		return cmdVersion()
	case "init":
		return cmdInit(args[1:])
	case "serve":
		return cmdServe(args[1:])
	case "annotate":
		return cmdAnnotate(args[1:])
	case "annotations":
		return cmdAnnotations(args[1:])
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() error {
	fmt.Println(`lingua commands: init | serve | annotate | annotations | version

Examples:
  lingua init
  lingua serve                 # Start the language server (stdio)
  lingua annotate --file api/handler.go --line 42 --message "double-check locking here"
  lingua annotations --file api/handler.go`)
	return nil
}

func addRootFlag(fs *flag.FlagSet) *string {
	return fs.String("root", ".", "Workspace root directory")
}

func addVerboseFlags(fs *flag.FlagSet) (*bool, *bool) {
	verbose := fs.Bool("verbose", false, "Show progress information")
	debug := fs.Bool("debug", false, "Show debugging information")
	return verbose, debug
}

func applyVerbosity(verbose, debug bool) {
	switch {
	case debug:
		logger.SetLevel(logger.LevelDebug)
	case verbose && logger.GetLevel() < logger.LevelInfo:
		logger.SetLevel(logger.LevelInfo)
	}
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	root := addRootFlag(fs)
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	verbose, debug := addVerboseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose, *debug)

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	logger.Info("initializing workspace at %s", rootPath)

	path, err := config.WriteStarter(rootPath, *force)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func openStore(rootPath string) (*annotations.Store, error) {
	cfg, err := config.Load(rootPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded from %s", config.Path(rootPath))
	if !cfg.AnnotationsEnabled() {
		return nil, fmt.Errorf("annotations are disabled in %s", config.Path(rootPath))
	}
	storePath := cfg.AnnotationsStore(rootPath)
	logger.Debug("opening annotation store %s", storePath)
	return annotations.Open(storePath)
}

func closeStore(store *annotations.Store) {
	if err := store.Close(); err != nil {
		logger.Error("closing annotation store: %v", err)
	}
}

func cmdAnnotate(args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	root := addRootFlag(fs)
	file := fs.String("file", "", "File the note attaches to (workspace-relative)")
	line := fs.Int("line", 1, "1-based line number")
	message := fs.String("message", "", "Note text")
	author := fs.String("author", "", "Note author")
	severity := fs.String("severity", "info", "Severity: error, warning, info, or hint")
	verbose, debug := addVerboseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose, *debug)
	if *file == "" || *message == "" {
		return fmt.Errorf("annotate requires --file and --message")
	}

	sev, err := parseSeverity(*severity)
	if err != nil {
		return err
	}

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	store, err := openStore(rootPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	logger.Info("annotating %s:%d (%s)", *file, *line, *severity)
	note, err := store.Add(context.Background(), annotations.Annotation{
		Path:     filepath.ToSlash(*file),
		Line:     *line - 1,
		Severity: sev,
		Message:  *message,
		Author:   *author,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added annotation %s on %s:%d\n", note.ID, note.Path, *line)
	return nil
}

func cmdAnnotations(args []string) error {
	fs := flag.NewFlagSet("annotations", flag.ContinueOnError)
	root := addRootFlag(fs)
	file := fs.String("file", "", "Only show notes for this file")
	remove := fs.String("remove", "", "Delete the note with this id")
	verbose, debug := addVerboseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose, *debug)

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	store, err := openStore(rootPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx := context.Background()
	if *remove != "" {
		logger.Info("removing annotation %s", *remove)
		if err := store.Remove(ctx, *remove); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", *remove)
		return nil
	}

	byPath := make(map[string][]annotations.Annotation)
	if *file != "" {
		notes, err := store.ForPath(ctx, *file)
		if err != nil {
			return err
		}
		byPath[filepath.ToSlash(*file)] = notes
	} else {
		byPath, err = store.All(ctx)
		if err != nil {
			return err
		}
	}

	total := 0
	for path, notes := range byPath {
		for _, n := range notes {
			line := fmt.Sprintf("%s:%d [%s] %s (%s)", path, n.Line+1, severityName(n.Severity), n.Message, n.ID)
			if logger.IsVerbose() && n.Author != "" {
				line += fmt.Sprintf(" by %s at %s", n.Author, n.CreatedAt.Format("2006-01-02"))
			}
			fmt.Println(line)
			total++
		}
	}
	if total == 0 {
		fmt.Println("no annotations")
	}
	return nil
}

func parseSeverity(s string) (annotations.Severity, error) {
	switch strings.ToLower(s) {
	case "error":
		return annotations.SeverityError, nil
	case "warning", "warn":
		return annotations.SeverityWarning, nil
	case "info":
		return annotations.SeverityInfo, nil
	case "hint":
		return annotations.SeverityHint, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

func severityName(s annotations.Severity) string {
	switch s {
	case annotations.SeverityError:
		return "error"
	case annotations.SeverityWarning:
		return "warning"
	case annotations.SeverityHint:
		return "hint"
	default:
		return "info"
	}
}
