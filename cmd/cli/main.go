// Command lp is a CLI client for the lesson planner service.
// The draft lives in a local YAML file; every edit command rewrites it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/client"
	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/editor"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/orchestrate"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "lessonplanner")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lessonplanner")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

// loadToken returns "" when there is no unexpired token.
func loadToken() string {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return ""
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return ""
	}
	return tf.AccessToken
}

// ---- cli ----

type cli struct {
	addr      string
	draftPath string
	out       io.Writer
	errOut    io.Writer
	log       *zap.Logger
}

func (c *cli) client() *client.Client {
	return client.New(c.addr, client.WithToken(loadToken()))
}

// session opens the draft file. save writes it back after fn succeeds.
func (c *cli) session(ctx context.Context, save bool, fn func(ctx context.Context, s *editor.Session) error) error {
	store, err := loadDraft(c.draftPath)
	if err != nil {
		return err
	}
	s := editor.Open(store, c.client(), c.log, editor.Options{
		SignedIn: func() bool { return loadToken() != "" },
		OnTransition: func(t orchestrate.Transition) {
			c.log.Debug("action", zap.String("kind", string(t.Kind)), zap.String("state", string(t.To)))
		},
	})
	defer s.Close()
	fnErr := fn(ctx, s)
	if save {
		// Reconciled ids are kept even when a follow-up action failed.
		if err := saveDraft(c.draftPath, s.Draft()); err != nil {
			return errors.Join(fnErr, err)
		}
	}
	return fnErr
}

// edit runs a mutation against the draft file; the file is left untouched when fn fails.
func (c *cli) edit(ctx context.Context, fn func(s *editor.Session) error) error {
	return c.session(ctx, false, func(_ context.Context, s *editor.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		return saveDraft(c.draftPath, s.Draft())
	})
}

func usage(w io.Writer) {
	fmt.Fprint(w, `lp CLI
Usage:
  lp [-addr URL] [-draft file] [-v] <cmd> [args]

Account:
  register     -email <email> -password <password>
  login        -email <email> -password <password>   (saves token)

Draft (steps are numbered from 1):
  new          [-force]
  show
  set          <field> <value>        fields: title date duration grouping delivery_mode logo_url
  add-step     [-title t] [-notes n] [-resources id,id]
  rm-step      <n>
  rename-step  <n> <title>
  notes        <n> <text>
  resources    <n> [id,id,...]
  move-step    <n> <to>
  preview

Server:
  save
  pull         <plan-id>
  export       [-format pdf|docx] [-o file]
  link         <class-id>
  class        <name>
  resource     -title t [-type type] [-subject s] [-stage s] [-description d] [-thumbnail url] [-tags a,b] [-public]
`)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &cli{out: stdout, errOut: stderr}
	fs.StringVar(&c.addr, "addr", "http://localhost:8080", "server base URL")
	fs.StringVar(&c.draftPath, "draft", "lesson.yaml", "draft file")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}

	c.log = zap.NewNop()
	if *verbose {
		c.log, _ = zap.NewDevelopment()
		defer func() { _ = c.log.Sync() }()
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	h, ok := commands[cmd]
	if !ok {
		usage(stderr)
		return 2
	}
	if err := h(ctx, c, rest); err != nil {
		var ae *orchestrate.ActionError
		if errors.As(err, &ae) {
			fmt.Fprintln(stderr, ae.Message())
			c.log.Debug("action failed", zap.Error(err))
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

type handler func(ctx context.Context, c *cli, args []string) error

var commands map[string]handler

func init() {
	commands = map[string]handler{
		"version": func(_ context.Context, c *cli, _ []string) error {
			fmt.Fprintf(c.out, "lp %s (%s)\n", version, buildDate)
			return nil
		},
		"register":    cmdRegister,
		"login":       cmdLogin,
		"new":         cmdNew,
		"show":        cmdShow,
		"set":         cmdSet,
		"add-step":    cmdAddStep,
		"rm-step":     cmdRemoveStep,
		"rename-step": cmdRenameStep,
		"notes":       cmdNotes,
		"resources":   cmdResources,
		"move-step":   cmdMoveStep,
		"preview":     cmdPreview,
		"save":        cmdSave,
		"pull":        cmdPull,
		"export":      cmdExport,
		"link":        cmdLink,
		"class":       cmdClass,
		"resource":    cmdResource,
	}
}

// ---- account ----

func credentials(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	email := fs.String("email", "", "email")
	pw := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if *email == "" || *pw == "" {
		return "", "", errors.New("need -email and -password")
	}
	return *email, *pw, nil
}

func cmdRegister(ctx context.Context, c *cli, args []string) error {
	email, pw, err := credentials("register", args)
	if err != nil {
		return err
	}
	id, err := client.New(c.addr).Register(ctx, email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	email, pw, err := credentials("login", args)
	if err != nil {
		return err
	}
	tok, err := client.New(c.addr).Login(ctx, email, pw)
	if err != nil {
		return err
	}
	if err := saveToken(tok.AccessToken, tok.ExpiresAt); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

// ---- draft ----

func cmdNew(_ context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing draft")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(c.draftPath); err == nil && !*force {
		return fmt.Errorf("%s exists (use -force)", c.draftPath)
	}
	return saveDraft(c.draftPath, draft.New().Snapshot())
}

func cmdShow(_ context.Context, c *cli, _ []string) error {
	store, err := loadDraft(c.draftPath)
	if err != nil {
		return err
	}
	d := store.Snapshot()
	fmt.Fprint(c.out, renderSummary(d, store.Dirty()))
	return nil
}

func cmdSet(ctx context.Context, c *cli, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: set <field> <value>")
	}
	f := draft.Field(args[0])
	known := false
	for _, k := range draft.Fields {
		known = known || k == f
	}
	if !known {
		return fmt.Errorf("unknown field %q", args[0])
	}
	value := strings.Join(args[1:], " ")
	if f == draft.FieldDate && strings.TrimSpace(value) != "" {
		if _, err := model.ParseDate(value); err != nil {
			return err
		}
	}
	return c.edit(ctx, func(s *editor.Session) error {
		s.SetField(f, value)
		return nil
	})
}

func cmdAddStep(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("add-step", flag.ContinueOnError)
	title := fs.String("title", "", "step title")
	notes := fs.String("notes", "", "step notes")
	res := fs.String("resources", "", "comma-separated resource ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDList(*res)
	if err != nil {
		return err
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id := s.AddStep()
		if *title != "" {
			s.RenameStep(id, *title)
		}
		if *notes != "" {
			s.SetStepNotes(id, *notes)
		}
		if len(ids) > 0 {
			s.SetStepResourceIDs(id, ids)
		}
		fmt.Fprintf(c.out, "step %d added\n", len(s.Draft().Steps))
		return nil
	})
}

func cmdRemoveStep(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm-step <n>")
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id, err := stepAt(s.Draft(), args[0])
		if err != nil {
			return err
		}
		s.RemoveStep(id)
		return nil
	})
}

func cmdRenameStep(ctx context.Context, c *cli, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: rename-step <n> <title>")
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id, err := stepAt(s.Draft(), args[0])
		if err != nil {
			return err
		}
		s.RenameStep(id, strings.Join(args[1:], " "))
		s.BlurStepTitle(id)
		return nil
	})
}

func cmdNotes(ctx context.Context, c *cli, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: notes <n> <text>")
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id, err := stepAt(s.Draft(), args[0])
		if err != nil {
			return err
		}
		s.SetStepNotes(id, strings.Join(args[1:], " "))
		return nil
	})
}

func cmdResources(ctx context.Context, c *cli, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: resources <n> [id,id,...]")
	}
	var ids []uuid.UUID
	if len(args) == 2 {
		var err error
		if ids, err = parseIDList(args[1]); err != nil {
			return err
		}
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id, err := stepAt(s.Draft(), args[0])
		if err != nil {
			return err
		}
		s.SetStepResourceIDs(id, ids)
		return nil
	})
}

func cmdMoveStep(ctx context.Context, c *cli, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: move-step <n> <to>")
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad position %q", args[1])
	}
	return c.edit(ctx, func(s *editor.Session) error {
		id, err := stepAt(s.Draft(), args[0])
		if err != nil {
			return err
		}
		s.MoveStep(id, to-1)
		return nil
	})
}

func cmdPreview(ctx context.Context, c *cli, _ []string) error {
	return c.session(ctx, false, func(_ context.Context, s *editor.Session) error {
		s.WaitResolved()
		fmt.Fprintln(c.out, renderPreview(s.Draft(), s.Preview()))
		return nil
	})
}

// ---- server ----

func cmdSave(ctx context.Context, c *cli, _ []string) error {
	return c.session(ctx, true, func(ctx context.Context, s *editor.Session) error {
		if loadToken() == "" {
			return errors.New("login required")
		}
		saved, err := s.Save(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "saved %s (%d steps)\n", saved.ID, len(saved.StepIDs))
		return nil
	})
}

func cmdPull(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: pull <plan-id>")
	}
	id, err := uuid.FromString(args[0])
	if err != nil {
		return fmt.Errorf("bad plan id: %w", err)
	}
	p, err := c.client().GetPlan(ctx, id)
	if err != nil {
		return err
	}
	return c.edit(ctx, func(s *editor.Session) error {
		s.Hydrate(p)
		return nil
	})
}

func cmdExport(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", string(model.FormatPDF), "pdf or docx")
	outPath := fs.String("o", "", "output file (default: server filename)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := model.ParseExportFormat(*format)
	if err != nil {
		return err
	}
	return c.session(ctx, true, func(ctx context.Context, s *editor.Session) error {
		doc, err := s.Export(ctx, f)
		if err != nil {
			return err
		}
		path := *outPath
		if path == "" {
			path = doc.Filename
		}
		if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "wrote %s (%d bytes)\n", path, len(doc.Body))
		return nil
	})
}

func cmdLink(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: link <class-id>")
	}
	classID, err := uuid.FromString(args[0])
	if err != nil {
		return fmt.Errorf("bad class id: %w", err)
	}
	return c.session(ctx, true, func(ctx context.Context, s *editor.Session) error {
		planID, err := s.SaveToClass(ctx, classID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "plan %s linked to class %s\n", planID, classID)
		return nil
	})
}

func cmdClass(ctx context.Context, c *cli, args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return errors.New("usage: class <name>")
	}
	id, err := c.client().CreateClass(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func cmdResource(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("resource", flag.ContinueOnError)
	var r model.Resource
	fs.StringVar(&r.Title, "title", "", "title")
	fs.StringVar(&r.Type, "type", "", "resource type, e.g. video")
	fs.StringVar(&r.Subject, "subject", "", "subject")
	fs.StringVar(&r.Stage, "stage", "", "key stage")
	fs.StringVar(&r.Description, "description", "", "description")
	fs.StringVar(&r.ThumbnailURL, "thumbnail", "", "thumbnail URL")
	tags := fs.String("tags", "", "comma-separated tags")
	fs.BoolVar(&r.Public, "public", false, "visible to every teacher")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("need -title")
	}
	r.Tags = splitList(*tags)
	out, err := c.client().CreateResource(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, out.ID)
	return nil
}

// ---- helpers ----

// stepAt maps a 1-based step number to its local id.
func stepAt(d draft.Draft, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(d.Steps) {
		return "", fmt.Errorf("no step %q (draft has %d)", arg, len(d.Steps))
	}
	return d.Steps[n-1].LocalID, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDList(s string) ([]uuid.UUID, error) {
	parts := splitList(s)
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.FromString(p)
		if err != nil {
			return nil, fmt.Errorf("bad resource id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
