package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/ammar1510/gigchat/internal/apiclient"
	"github.com/ammar1510/gigchat/internal/auth"
	"github.com/ammar1510/gigchat/internal/config"
	"github.com/ammar1510/gigchat/internal/conversation"
	"github.com/ammar1510/gigchat/internal/logger"
	"github.com/ammar1510/gigchat/internal/marketplace"
	"github.com/ammar1510/gigchat/internal/socket"
)

var log = logger.New("gigchat")

type options struct {
	configPath string
	apiURL     string
	socketURL  string
	token      string
	email      string
	password   string
	projectID  string
}

func main() {
	var opts options
	flag.StringVarP(&opts.configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	flag.StringVar(&opts.apiURL, "api", "", "REST base URL, overrides API_BASE_URL")
	flag.StringVar(&opts.socketURL, "socket", "", "socket URL, overrides SOCKET_URL")
	flag.StringVar(&opts.token, "token", "", "session token, overrides TOKEN")
	flag.StringVar(&opts.email, "email", "", "log in with this email instead of a token")
	flag.StringVar(&opts.password, "password", "", "password for --email")
	flag.StringVarP(&opts.projectID, "project", "p", "", "project whose conversations to open, overrides PROJECT_ID")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "gigchat:", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(opts options) error {
	defer logger.Sync()

	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return err
	}
	if opts.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(opts.apiURL, "/")
	}
	if opts.socketURL != "" {
		cfg.SocketURL = opts.socketURL
	}
	if opts.token != "" {
		cfg.Token = opts.token
	}
	if opts.projectID != "" {
		cfg.ProjectID = opts.projectID
	}
	if cfg.ProjectID == "" {
		return errors.New("a project is required (--project or PROJECT_ID)")
	}

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	api, err := apiclient.New(apiclient.Config{
		BaseURL:        cfg.APIBaseURL,
		DefaultTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
		MaxRetries:     retries,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := marketplace.NewSession("", "")
	endpoints := marketplace.New(api, session)
	if err := authenticate(ctx, endpoints, session, cfg.Token, opts.email, opts.password); err != nil {
		return err
	}
	log.Debug("Authenticated as %s", session.UserID())

	sock, err := socket.Connect(socket.Config{
		URL:       cfg.SocketURL,
		Token:     session.Token(),
		Reconnect: true,
	})
	if err != nil {
		return err
	}

	out := newView(os.Stdout, session.UserID())
	manager, err := conversation.NewManager(conversation.Options{
		ProjectID: cfg.ProjectID,
		Session:   session,
		API:       endpoints,
		Socket:    sock,
		Notifier:  conversation.NotifierFunc(out.notify),
	})
	if err != nil {
		sock.Close()
		return err
	}
	defer manager.Close()

	go func() {
		for range manager.Changes() {
			out.render(manager.Snapshot())
		}
	}()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	out.participants(manager.Snapshot())
	out.println("Commands: /list, /select <n|id>, /upload <path>, /quit. Anything else is sent.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, line, manager, endpoints, out); quit {
				return nil
			}
		}
	}
}

// authenticate fills the session from a token or, failing that, from a
// login with email and password.
func authenticate(ctx context.Context, endpoints *marketplace.Client, session *marketplace.Session, token, email, password string) error {
	if token != "" {
		userID, err := auth.UserIDFromToken(token)
		if err != nil {
			return err
		}
		session.Set(token, userID)
		return nil
	}
	if email == "" {
		return errors.New("no session: pass --token or --email and --password")
	}

	response, err := endpoints.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	session.Set(response.Token, response.User.ID)
	return nil
}

func handleLine(ctx context.Context, line string, manager *conversation.Manager, endpoints *marketplace.Client, out *view) bool {
	command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/list":
		out.participants(manager.Snapshot())
	case "/select":
		id, ok := resolveSelection(manager.Participants(), arg)
		if !ok {
			out.println("No participant %q. Use /list.", arg)
			return false
		}
		// History loads in the background; the manager drops a superseded
		// fetch, so input stays live while it runs.
		go manager.Select(ctx, id)
	case "/upload":
		upload(ctx, endpoints, arg, out)
	default:
		manager.SetDraft(line)
		if !manager.CanSend() {
			snapshot := manager.Snapshot()
			switch {
			case !snapshot.Connected:
				out.println("Not connected; message kept as draft.")
			case snapshot.Active == "":
				out.println("Select a participant first.")
			}
			return false
		}
		manager.SubmitDraft()
	}
	return false
}

func upload(ctx context.Context, endpoints *marketplace.Client, path string, out *view) {
	if path == "" {
		out.println("Usage: /upload <path>")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		out.println("Cannot open %s: %v", path, err)
		return
	}
	defer file.Close()

	attachment, err := endpoints.UploadAttachment(ctx, filepath.Base(path), file, func(percent int) {
		out.println("Uploading %s: %d%%", filepath.Base(path), percent)
	})
	if err != nil {
		out.println("Upload failed: %v", err)
		return
	}
	out.println("Uploaded %s (%d bytes) as %s", attachment.Name, attachment.Size, attachment.ID)
}
