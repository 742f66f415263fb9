// Package cli implements the panelctl commands. Each process owns exactly one
// session provider backed by the credential file.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/authclient"
	"github.com/cursos-vacacionales/panel/internal/guard"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
)

// Exit codes.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitDenied           = 3
	ExitNotAuthenticated = 4
)

// Options wires a Run invocation. Zero values fall back to the process
// streams, an HTTP auth client and the configured credential file.
type Options struct {
	Config  Config
	Service session.AuthService
	Store   session.TokenStore
	Logger  *slog.Logger
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *runtime, args []string) int
}

var commands = []command{
	{name: "login", summary: "inicia sesión y guarda la credencial", run: runLogin},
	{name: "register", summary: "crea una cuenta e inicia sesión", run: runRegister},
	{name: "logout", summary: "cierra la sesión actual", run: runLogout},
	{name: "whoami", summary: "muestra el usuario de la sesión", run: runWhoami},
	{name: "can", summary: "comprueba un permiso: can <módulo> [acción]", run: runCan},
	{name: "open", summary: "abre una ruta aplicando el guard: open <ruta>", run: runOpen},
	{name: "routes", summary: "lista las rutas permitidas", run: runRoutes},
}

type runtime struct {
	provider *session.Provider
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

func (r *runtime) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.stderr, format+"\n", args...)
}

func (r *runtime) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.stdout, format+"\n", args...)
}

// Run executes the command named by args[0] and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(opts.Stderr)
		if len(args) == 0 {
			return ExitError
		}
		return ExitOK
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		_, _ = fmt.Fprintf(opts.Stderr, "panelctl: comando desconocido %q\n", args[0])
		usage(opts.Stderr)
		return ExitError
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(opts.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	service := opts.Service
	if service == nil {
		service = authclient.New(authclient.Config{
			BaseURL: opts.Config.AuthServiceURL,
			Timeout: opts.Config.Timeout,
			Logger:  logger,
		})
	}
	store := opts.Store
	if store == nil {
		store = session.NewFileStore(opts.Config.CredentialFile)
	}

	env := &runtime{
		provider: session.NewProvider(service, store, logger),
		stdin:    opts.Stdin,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
	}
	return cmd.run(ctx, env, args[1:])
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "uso: panelctl <comando> [opciones]")
	_, _ = fmt.Fprintln(w)
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
}

func newFlagSet(env *runtime, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("panelctl "+name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK, false
		}
		return ExitError, false
	}
	return ExitOK, true
}

func runLogin(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "login")
	email := fs.String("email", "", "correo electrónico")
	password := fs.String("password", "", "contraseña")
	passwordStdin := fs.Bool("password-stdin", false, "lee la contraseña de la entrada estándar")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	creds := auth.Credentials{Email: strings.TrimSpace(*email), Password: *password}
	if *passwordStdin {
		line, err := readLine(env.stdin)
		if err != nil {
			env.errorf("login: leer contraseña: %v", err)
			return ExitError
		}
		creds.Password = line
	}
	if reportInvalid(env, "login", auth.NewValidator().Struct(creds)) {
		return ExitError
	}

	if err := env.provider.Login(ctx, creds); err != nil {
		env.errorf("login: %s", auth.UserMessage(err))
		return ExitError
	}
	greet(env)
	return ExitOK
}

func runRegister(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "register")
	name := fs.String("name", "", "nombre completo")
	email := fs.String("email", "", "correo electrónico")
	password := fs.String("password", "", "contraseña")
	confirmation := fs.String("password-confirmation", "", "repite la contraseña")
	passwordStdin := fs.Bool("password-stdin", false, "lee la contraseña de la entrada estándar")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	reg := auth.Registration{
		Name:                 strings.TrimSpace(*name),
		Email:                strings.TrimSpace(*email),
		Password:             *password,
		PasswordConfirmation: *confirmation,
	}
	if *passwordStdin {
		line, err := readLine(env.stdin)
		if err != nil {
			env.errorf("register: leer contraseña: %v", err)
			return ExitError
		}
		reg.Password = line
		reg.PasswordConfirmation = line
	}
	if reportInvalid(env, "register", auth.NewValidator().Struct(reg)) {
		return ExitError
	}

	if err := env.provider.Register(ctx, reg); err != nil {
		env.errorf("register: %s", auth.UserMessage(err))
		fields := auth.FieldErrors(err)
		for _, field := range sortedKeys(fields) {
			env.errorf("  %s: %s", field, fields[field])
		}
		return ExitError
	}
	greet(env)
	return ExitOK
}

func runLogout(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "logout")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := env.provider.Logout(ctx); err != nil {
		env.errorf("logout: %v", err)
		return ExitError
	}
	env.printf("Has cerrado sesión")
	return ExitOK
}

type whoamiOutput struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RoleName     string `json:"role_name,omitempty"`
	DefaultRoute string `json:"default_route"`
}

func runWhoami(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "whoami")
	jsonOutput := fs.Bool("json", false, "salida en JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	snap, ok := authenticated(ctx, env, "whoami")
	if !ok {
		return ExitNotAuthenticated
	}
	user := snap.User
	if *jsonOutput {
		out := whoamiOutput{
			ID:           user.ID,
			Name:         user.Name,
			Email:        user.Email,
			Role:         snap.Role().String(),
			RoleName:     user.RoleName,
			DefaultRoute: rbac.DefaultRoute(snap.Role()),
		}
		if err := json.NewEncoder(env.stdout).Encode(out); err != nil {
			env.errorf("whoami: encode json: %v", err)
			return ExitError
		}
		return ExitOK
	}
	env.printf("%s <%s>", user.Name, user.Email)
	env.printf("rol: %s", roleLabel(snap))
	env.printf("inicio: %s", rbac.DefaultRoute(snap.Role()))
	return ExitOK
}

func runCan(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "can")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		env.errorf("can: uso: panelctl can <módulo> [acción]")
		return ExitError
	}
	module := rbac.ParseModule(rest[0])
	if module == rbac.ModuleUnknown {
		env.errorf("can: módulo desconocido %q", rest[0])
		return ExitError
	}
	actionSlug := ""
	if len(rest) == 2 {
		actionSlug = rest[1]
	}
	action, ok := rbac.ParseAction(actionSlug)
	if !ok {
		env.errorf("can: acción desconocida %q", actionSlug)
		return ExitError
	}

	snap, ok := authenticated(ctx, env, "can")
	if !ok {
		return ExitNotAuthenticated
	}
	if !rbac.HasPermission(snap.Role(), module, action) {
		env.printf("no: %s no puede %s en %s", snap.Role(), action, module)
		return ExitDenied
	}
	env.printf("sí: %s puede %s en %s", snap.Role(), action, module)
	return ExitOK
}

// runOpen drives a Navigator through the startup validation so the output
// shows every frame a long-lived client would display.
func runOpen(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "open")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		env.errorf("open: uso: panelctl open <ruta>")
		return ExitError
	}

	var frames []guard.Frame
	nav := guard.NewNavigator(env.provider, func(f guard.Frame) {
		frames = append(frames, f)
	}, rbac.LoginRoute, rbac.RegisterRoute)
	defer nav.Close()

	nav.Navigate(fs.Arg(0))
	env.provider.Init(ctx)

	code := ExitOK
	for _, f := range frames {
		env.printf("%s", describeFrame(f))
		switch f.Decision.Outcome {
		case guard.OutcomeDenied:
			code = ExitDenied
		case guard.OutcomeRedirectLogin:
			if code == ExitOK {
				code = ExitNotAuthenticated
			}
		}
	}
	return code
}

func runRoutes(ctx context.Context, env *runtime, args []string) int {
	fs := newFlagSet(env, "routes")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	snap, ok := authenticated(ctx, env, "routes")
	if !ok {
		return ExitNotAuthenticated
	}
	role := snap.Role()
	for _, route := range rbac.NavigationFor(role) {
		var actions []string
		for _, action := range rbac.AllowedActions(role, route.Module).List() {
			actions = append(actions, action.String())
		}
		env.printf("%-22s %-16s %s", route.Path, route.Module.Title(), strings.Join(actions, ","))
	}
	return ExitOK
}

func authenticated(ctx context.Context, env *runtime, name string) (session.Snapshot, bool) {
	env.provider.Init(ctx)
	snap := env.provider.Snapshot()
	if !snap.Authenticated() || snap.User == nil {
		env.errorf("%s: no hay sesión iniciada, usa panelctl login", name)
		return snap, false
	}
	return snap, true
}

func greet(env *runtime) {
	snap := env.provider.Snapshot()
	if snap.User == nil {
		return
	}
	env.printf("Sesión iniciada como %s (%s)", snap.User.Name, roleLabel(snap))
	env.printf("inicio: %s", rbac.DefaultRoute(snap.Role()))
}

func roleLabel(snap session.Snapshot) string {
	if snap.User != nil && snap.User.RoleName != "" {
		return snap.User.RoleName
	}
	if !snap.Role().Valid() {
		return "sin rol"
	}
	return snap.Role().String()
}

func describeFrame(f guard.Frame) string {
	if f.Decision.Target != "" {
		return fmt.Sprintf("%-14s %s -> %s", f.Decision.Outcome, f.Path, f.Decision.Target)
	}
	return fmt.Sprintf("%-14s %s", f.Decision.Outcome, f.Path)
}

func reportInvalid(env *runtime, name string, err error) bool {
	fields := auth.ValidationFields(err)
	if len(fields) == 0 {
		return false
	}
	for _, field := range sortedKeys(fields) {
		env.errorf("%s: %s: %s", name, field, auth.RuleMessage(fields[field][0]))
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
