package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/and161185/danaom/internal/service"
)

const helpText = `Commands:
  register -email <email> -name <password> [-phone p] [-address a] [-date d]
  login <email> <password>
  logout
  me                       show and prepare your profile for editing
  edit [-name n] [-email e] [-phone p] [-address a] [-date d]
  user <id>                show a user by id
  search <query...>
  next                     load the next page
  scroll <row>             load the next page if row is near the end
  sort <sim|date|asc|desc>
  results                  list loaded results
  detail <n>               show result n
  wish <n>                 toggle result n on your wishlist
  wishlist
  admin users | admin select <id> | admin delete
  admin save [-new] [-id n] -email <email> [-name n] [-phone p] [-address a] [-date d]
  help
  quit
`

// shell drives the controllers from line-oriented input.
type shell struct {
	session *service.Session
	search  *service.Search
	out     io.Writer
	log     *zap.Logger
}

func (sh *shell) printf(format string, args ...any) { fmt.Fprintf(sh.out, format, args...) }

// run reads commands from in until EOF, "quit" or ctx is done.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	sh.printf("> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if sh.guarded(ctx, line) {
				return nil
			}
			sh.printf("> ")
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	args, err := splitArgs(line)
	if err != nil {
		sh.printf("error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "quit", "exit":
		return true

	case "help":
		sh.printf("%s", helpText)

	case "register":
		fs := newFlagSet("register", sh.out)
		var u model.User
		fs.StringVar(&u.Email, "email", "", "email")
		fs.StringVar(&u.Name, "name", "", "name (used as password)")
		phone, address, date := optionalFlags(fs)
		if fs.Parse(rest) != nil {
			return false
		}
		u.Phone, u.Address, u.RegistrationDate = nonEmpty(*phone), nonEmpty(*address), nonEmpty(*date)
		id, err := sh.session.Register(ctx, u)
		switch {
		case err != nil:
			sh.printf("error: %s\n", sh.session.ErrorMessage())
		case id == 0:
			sh.printf("already registered\n")
		default:
			sh.printf("registered, id %d\n", id)
		}

	case "login":
		if len(rest) != 2 {
			sh.printf("usage: login <email> <password>\n")
			return false
		}
		state := sh.session.Login(ctx, rest[0], rest[1])
		if state != model.LoginSuccess {
			sh.printf("%s: %s\n", state, sh.session.ErrorMessage())
			return false
		}
		u := sh.session.CurrentUser()
		sh.printf("welcome %s (uid %s)\n", u.Email, sh.session.CurrentUID())
		if sh.session.IsAdmin() {
			sh.printf("admin: %d users\n", len(sh.session.AdminUsers()))
		}

	case "logout":
		sh.session.Logout()
		sh.printf("logged out\n")

	case "me":
		if sh.session.CurrentUser() == nil {
			sh.printf("not logged in\n")
			return false
		}
		sh.session.PrepareForMyInfoEdit()
		sh.printUser(sh.session.UserForInfoScreen())

	case "edit":
		sh.edit(ctx, rest)

	case "user":
		if len(rest) != 1 {
			sh.printf("usage: user <id>\n")
			return false
		}
		if _, err := sh.session.LoadUserForInfoScreen(ctx, rest[0]); err != nil {
			sh.printf("error: %s\n", sh.session.ErrorMessage())
			return false
		}
		sh.printUser(sh.session.UserForInfoScreen())

	case "search":
		sh.search.SearchNews(ctx, strings.Join(rest, " "))
		sh.afterFetch(ctx)

	case "next":
		sh.search.LoadNextItems(ctx)
		sh.afterFetch(ctx)

	case "scroll":
		row, ok := sh.index(rest)
		if !ok {
			return false
		}
		if !sh.search.ShouldLoadMore(row - 1) {
			sh.printf("nothing to load\n")
			return false
		}
		sh.search.LoadNextItems(ctx)
		sh.afterFetch(ctx)

	case "sort":
		if len(rest) != 1 {
			sh.printf("usage: sort <sim|date|asc|desc>\n")
			return false
		}
		opt, err := model.ParseSortOption(rest[0])
		if err != nil {
			sh.printf("error: %v\n", err)
			return false
		}
		sh.search.ChangeSortOption(ctx, opt, sh.search.Query())
		sh.afterFetch(ctx)

	case "results":
		sh.printResults()

	case "detail":
		item, ok := sh.item(rest)
		if !ok {
			return false
		}
		found, err := sh.search.FindLoadedItem(url.QueryEscape(item.Link))
		if err != nil {
			sh.printf("error: %v\n", err)
			return false
		}
		sh.printf("%s\n  price: %s", model.StripTags(found.Title), found.LowPrice)
		if found.HighPrice != "" {
			sh.printf(" ~ %s", found.HighPrice)
		}
		sh.printf("\n  mall: %s  brand: %s  category: %s\n  link: %s\n  wishlisted: %t\n",
			found.MallName, found.Brand, found.Category1, found.Link, sh.session.IsWishlisted(found.Link))

	case "wish":
		item, ok := sh.item(rest)
		if !ok {
			return false
		}
		added, err := sh.session.ToggleMembership(ctx, item)
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			sh.printf("log in first\n")
		case err != nil:
			sh.printf("error: %s\n", sh.session.ErrorMessage())
		case added:
			sh.printf("added to wishlist\n")
		default:
			sh.printf("removed from wishlist\n")
		}

	case "wishlist":
		if sh.session.CurrentUser() == nil {
			sh.printf("not logged in\n")
			return false
		}
		items := sh.session.Wishlist()
		if len(items) == 0 {
			sh.printf("wishlist is empty\n")
		}
		for i, it := range items {
			sh.printf("%2d. %s  %s  (%s)\n", i+1, model.StripTags(deref(it.Title)), deref(it.LowPrice), it.AddedAt.Format("2006-01-02 15:04"))
		}

	case "admin":
		sh.admin(ctx, rest)

	default:
		sh.printf("unknown command %q, try help\n", cmd)
	}
	return false
}

func (sh *shell) edit(ctx context.Context, args []string) {
	if sh.session.CurrentUser() == nil {
		sh.printf("not logged in\n")
		return
	}
	sh.session.PrepareForMyInfoEdit()
	u := sh.session.UserForInfoScreen()

	fs := newFlagSet("edit", sh.out)
	fs.StringVar(&u.Name, "name", u.Name, "name")
	fs.StringVar(&u.Email, "email", u.Email, "email")
	phone, address, date := optionalFlags(fs)
	if fs.Parse(args) != nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "phone":
			u.Phone = nonEmpty(*phone)
		case "address":
			u.Address = nonEmpty(*address)
		case "date":
			u.RegistrationDate = nonEmpty(*date)
		}
	})
	res := sh.session.UpdateUserInformation(ctx, *u)
	sh.printf("%s\n", res.Message)
}

func (sh *shell) admin(ctx context.Context, args []string) {
	if !sh.session.IsAdmin() {
		sh.printf("admin only\n")
		return
	}
	if len(args) == 0 {
		sh.printf("usage: admin users|select|delete|save\n")
		return
	}
	switch args[0] {
	case "users":
		if err := sh.session.LoadAllUsersForAdmin(); err != nil {
			sh.printf("error: %s\n", sh.session.AdminMessage())
			return
		}
		for _, u := range sh.session.AdminUsers() {
			sh.printf("%4d  %-20s %s\n", u.ID, u.Email, u.Name)
		}

	case "select":
		if len(args) != 2 {
			sh.printf("usage: admin select <id>\n")
			return
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			sh.printf("invalid id format\n")
			return
		}
		for _, u := range sh.session.AdminUsers() {
			if u.ID == id {
				sh.session.SelectUserForAdmin(&u)
				sh.printf("selected %s\n", u.Email)
				return
			}
		}
		sh.printf("no user with id %d\n", id)

	case "delete":
		_ = sh.session.AdminDeleteSelectedUser(ctx)
		sh.printf("%s\n", sh.session.AdminMessage())

	case "save":
		fs := newFlagSet("admin save", sh.out)
		var u model.User
		isNew := fs.Bool("new", false, "insert a new user")
		fs.Int64Var(&u.ID, "id", 0, "user id to overwrite")
		fs.StringVar(&u.Email, "email", "", "email")
		fs.StringVar(&u.Name, "name", "", "name")
		phone, address, date := optionalFlags(fs)
		if fs.Parse(args[1:]) != nil {
			return
		}
		if sel := sh.session.SelectedUser(); sel != nil && u.ID == 0 && !*isNew {
			u.ID = sel.ID
		}
		u.Phone, u.Address, u.RegistrationDate = nonEmpty(*phone), nonEmpty(*address), nonEmpty(*date)
		_ = sh.session.AdminAddOrUpdateUser(ctx, u, *isNew || u.ID == 0)
		sh.printf("%s\n", sh.session.AdminMessage())

	default:
		sh.printf("unknown admin command %q\n", args[0])
	}
}

// afterFetch prints the result list and refreshes wishlist marks for it.
func (sh *shell) afterFetch(ctx context.Context) {
	if msg := sh.search.ErrorMessage(); msg != "" {
		sh.printf("error: %s\n", msg)
	}
	if sh.search.State() == model.LoadError {
		return
	}
	sh.session.FetchMembershipStatus(ctx, sh.search.Items())
	sh.printResults()
}

func (sh *shell) printResults() {
	items := sh.search.Items()
	state := sh.search.State()
	if len(items) == 0 {
		sh.printf("no results (%s)\n", state)
		return
	}
	for i, it := range items {
		mark := " "
		if sh.session.IsWishlisted(it.Link) {
			mark = "*"
		}
		sh.printf("%3d. %s %s  %s  [%s]\n", i+1, mark, model.StripTags(it.Title), it.LowPrice, it.MallName)
	}
	sh.printf("%d loaded, sort %s, %s\n", len(items), sh.search.SortOption(), state)
}

func (sh *shell) printUser(u *model.User) {
	if u == nil {
		return
	}
	sh.printf("id: %d\nemail: %s\nname: %s\nphone: %s\naddress: %s\nregistered: %s\n",
		u.ID, u.Email, u.Name, deref(u.Phone), deref(u.Address), deref(u.RegistrationDate))
}

// index parses a single 1-based row argument.
func (sh *shell) index(args []string) (int, bool) {
	if len(args) != 1 {
		sh.printf("expected a result number\n")
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		sh.printf("invalid result number %q\n", args[0])
		return 0, false
	}
	return n, true
}

func (sh *shell) item(args []string) (model.CatalogItem, bool) {
	n, ok := sh.index(args)
	if !ok {
		return model.CatalogItem{}, false
	}
	items := sh.search.Items()
	if n > len(items) {
		sh.printf("only %d results loaded\n", len(items))
		return model.CatalogItem{}, false
	}
	return items[n-1], true
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func optionalFlags(fs *flag.FlagSet) (phone, address, date *string) {
	return fs.String("phone", "", "phone"), fs.String("address", "", "address"), fs.String("date", "", "registration date")
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// splitArgs splits a line on whitespace, keeping double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
