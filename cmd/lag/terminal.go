package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/npezzotti/go-lag/internal/app"
	"github.com/npezzotti/go-lag/internal/router"
	"github.com/npezzotti/go-lag/internal/types"
	"golang.org/x/term"
)

// terminal renders the app's screens as line prompts.
type terminal struct {
	app *app.App
	in  *bufio.Reader
	fd  int
	out io.Writer
	mu  sync.Mutex
}

func newTerminal(a *app.App, in io.Reader, out io.Writer) *terminal {
	t := &terminal{app: a, in: bufio.NewReader(in), fd: -1, out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
	}
	return t
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

type lineResult struct {
	line string
	err  error
}

// readLine returns the next input line. A line still pending when ctx ends
// is discarded.
func (t *terminal) readLine(ctx context.Context, prompt string) (string, error) {
	t.printf("%s", prompt)

	ch := make(chan lineResult, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- lineResult{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && (!errors.Is(r.err, io.EOF) || r.line == "") {
			return "", r.err
		}
		return r.line, nil
	}
}

func (t *terminal) readPassword(ctx context.Context, prompt string) (string, error) {
	if t.fd < 0 {
		return t.readLine(ctx, prompt)
	}

	t.printf("%s", prompt)
	b, err := term.ReadPassword(t.fd)
	t.printf("\n")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (t *terminal) confirm(ctx context.Context, question string) (bool, error) {
	for {
		line, err := t.readLine(ctx, question+" [y/N]: ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
		t.printf("Please enter 'y' or 'n'.\n")
	}
}

// report prints failures meant for the user and returns everything else.
func (t *terminal) report(err error) error {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		t.printf("! %s\n", appErr.Message)
		return nil
	}
	return err
}

func (t *terminal) Run(ctx context.Context) error {
	t.printf("lag\n")
	if _, err := t.app.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	for !t.app.Exited() {
		var err error
		switch t.app.State().(type) {
		case router.Login:
			err = t.login(ctx)
		case router.Register:
			err = t.register(ctx)
		case router.Home:
			err = t.home(ctx)
		case router.Directory:
			err = t.directory(ctx)
		case router.Chat:
			err = t.chat(ctx)
		default:
			return fmt.Errorf("no screen for state %s", t.app.State().Name())
		}

		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// back handles a back request, showing the exit dialog where needed.
func (t *terminal) back(ctx context.Context) error {
	exit, err := t.app.Back()
	if err != nil || !exit {
		return err
	}

	ok, err := t.confirm(ctx, "Are you sure you want to exit?")
	if err != nil {
		return err
	}
	if ok {
		return t.app.ConfirmExit()
	}
	return t.app.CancelExit()
}

func (t *terminal) login(ctx context.Context) error {
	t.printf("\n== Log In ==  (:register to create an account, :back to exit)\n")

	username, err := t.readLine(ctx, "Username: ")
	if err != nil {
		return err
	}
	switch username {
	case ":register":
		return t.app.ShowRegister()
	case ":back":
		return t.back(ctx)
	}

	password, err := t.readPassword(ctx, "Password: ")
	if err != nil {
		return err
	}

	return t.report(t.app.SubmitLogin(ctx, username, password))
}

func (t *terminal) register(ctx context.Context) error {
	t.printf("\n== Register ==  (:login or :back to return)\n")

	name, err := t.readLine(ctx, "Name: ")
	if err != nil {
		return err
	}
	switch name {
	case ":login":
		return t.app.ShowLogin()
	case ":back":
		_, err := t.app.Back()
		return err
	}

	username, err := t.readLine(ctx, "Username: ")
	if err != nil {
		return err
	}
	email, err := t.readLine(ctx, "Email: ")
	if err != nil {
		return err
	}
	password, err := t.readPassword(ctx, "Password: ")
	if err != nil {
		return err
	}

	if err := t.app.SubmitRegister(ctx, name, username, email, password); err != nil {
		return t.report(err)
	}
	t.printf("Account created. Please log in.\n")
	return nil
}

// userList keeps the list last rendered so numbered commands resolve
// against what the user saw.
type userList struct {
	mu    sync.Mutex
	users []types.User
}

func (l *userList) set(users []types.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = users
}

func (l *userList) get(s string) (types.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := parseIndex(s, len(l.users))
	if !ok {
		return types.User{}, false
	}
	return l.users[i], true
}

// parseIndex converts a 1-based list position into an index below n.
func parseIndex(s string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func (t *terminal) renderUsers(title, empty string, list *userList) func(app.View[types.User]) {
	return func(v app.View[types.User]) {
		switch v.Status {
		case app.Loading:
			t.printf("\n== %s ==\nloading...\n", title)
		case app.Failed:
			list.set(nil)
			t.printf("\n== %s ==\n! %s\n", title, v.Err)
		case app.Ready:
			list.set(v.Items)
			var b strings.Builder
			fmt.Fprintf(&b, "\n== %s ==\n", title)
			if len(v.Items) == 0 {
				fmt.Fprintf(&b, "%s\n", empty)
			}
			for i, u := range v.Items {
				fmt.Fprintf(&b, "%2d. %s (@%s)\n", i+1, u.Name, u.Username)
			}
			t.printf("%s", b.String())
		}
	}
}

// runScreen runs a controller until the returned stop function is called.
func runScreen[T any](ctx context.Context, run func(context.Context, func(app.View[T])) error, render func(app.View[T])) (stop func()) {
	screenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(screenCtx, render)
	}()

	return func() {
		cancel()
		<-done
	}
}

func (t *terminal) home(ctx context.Context) error {
	h, err := t.app.Home()
	if errors.Is(err, app.ErrNoSession) {
		t.printf("Session expired. Please log in again.\n")
		return t.report(t.app.Logout(ctx))
	}
	if err != nil {
		return err
	}

	var roster userList
	stop := runScreen(ctx, h.Run, t.renderUsers("Chats", "No chats yet. Type n to start one.", &roster))
	defer stop()

	for {
		line, err := t.readLine(ctx, "[n]ew, <number> open, d <number> delete, logout, back > ")
		if err != nil {
			return err
		}

		switch {
		case line == "n":
			return t.app.NewChat()
		case line == "logout":
			return t.report(t.app.Logout(ctx))
		case line == "back":
			if err := t.back(ctx); err != nil {
				return err
			}
			if _, ok := t.app.State().(router.Home); !ok {
				return nil
			}
		case strings.HasPrefix(line, "d "):
			u, ok := roster.get(strings.TrimPrefix(line, "d "))
			if !ok {
				t.printf("No such chat.\n")
				continue
			}
			ok, err := t.confirm(ctx, fmt.Sprintf("Are you sure you want to delete chat with %s?", u.Name))
			if err != nil {
				return err
			}
			if ok {
				if err := t.report(h.Delete(ctx, u)); err != nil {
					return err
				}
			}
		default:
			if u, ok := roster.get(line); ok {
				return t.app.Select(u)
			}
			t.printf("Unknown command %q.\n", line)
		}
	}
}

func (t *terminal) directory(ctx context.Context) error {
	d, err := t.app.Directory()
	if err != nil {
		return err
	}

	var users userList
	stop := runScreen(ctx, d.Run, t.renderUsers("All Users", "No other users yet.", &users))
	defer stop()

	for {
		line, err := t.readLine(ctx, "<number> chat, back > ")
		if err != nil {
			return err
		}

		if line == "back" {
			_, err := t.app.Back()
			return err
		}
		if u, ok := users.get(line); ok {
			return t.app.Select(u)
		}
		t.printf("Unknown command %q.\n", line)
	}
}

func (t *terminal) renderMessages(peer types.User) func(app.View[types.Message]) {
	return func(v app.View[types.Message]) {
		switch v.Status {
		case app.Loading:
			t.printf("\n== %s ==\nloading...\n", peer.Name)
		case app.Failed:
			t.printf("! %s\n", v.Err)
		case app.Ready:
			var b strings.Builder
			fmt.Fprintf(&b, "\n== %s ==\n", peer.Name)
			for _, m := range v.Items {
				from := "You"
				if m.SenderId == peer.UserId {
					from = peer.Name
				}
				fmt.Fprintf(&b, "%s: %s\n", from, m.Content)
			}
			t.printf("%s", b.String())
		}
	}
}

func (t *terminal) chat(ctx context.Context) error {
	c, err := t.app.Chat()
	if err != nil {
		return err
	}

	stop := runScreen(ctx, c.Run, t.renderMessages(c.Peer()))
	defer stop()

	for {
		line, err := t.readLine(ctx, "")
		if err != nil {
			return err
		}

		switch {
		case line == "/back":
			_, err := t.app.Back()
			return err
		case line == "" && c.Draft() == "":
			continue
		case line != "":
			c.SetDraft(line)
		}

		if err := c.Send(ctx); err != nil {
			if err := t.report(err); err != nil {
				return err
			}
			t.printf("Message not sent. Press enter to retry %q.\n", c.Draft())
		}
	}
}
