package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tcriess/neowatch/api"
	"github.com/tcriess/neowatch/chat"
	"github.com/tcriess/neowatch/config"
	"github.com/tcriess/neowatch/credentials"
	"github.com/tcriess/neowatch/filter"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/metrics"
	"github.com/tcriess/neowatch/permission"
	"github.com/tcriess/neowatch/session"
	"github.com/tcriess/neowatch/types"
)

// A small CLI for the neowatch session, permission and chat core.

var (
	configPath  string
	email       string
	password    string
	name        string
	role        string
	metricsAddr string
)

// app is everything the commands share, created once the configuration is known.
type app struct {
	cfg     *config.Config
	store   credentials.Store
	metrics *metrics.Metrics
	manager *session.Manager
	chat    *chat.Client
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := credentials.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	apiClient := api.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.SessionConfig.RequestTimeout})
	manager := session.NewManager(apiClient, store, session.Options{
		AccessTTL:      cfg.CredentialsConfig.AccessTTL,
		RefreshTTL:     cfg.CredentialsConfig.RefreshTTL,
		RefreshTimeout: cfg.SessionConfig.RefreshTimeout,
		Secure:         cfg.Secure(),
		Metrics:        m,
	})
	f, err := filter.New(cfg.ChatConfig.Filter)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	chatClient := chat.NewClient(chat.Options{
		URL:               cfg.WSURL,
		ReconnectAttempts: cfg.ChatConfig.ReconnectAttempts,
		ReconnectDelay:    cfg.ChatConfig.ReconnectDelay,
		TypingTimeout:     cfg.ChatConfig.TypingTimeout,
		SeenCacheSize:     cfg.ChatConfig.SeenCacheSize,
		Filter:            f,
		Terminator:        manager,
		Metrics:           m,
	}, store, nil)
	manager.AttachChat(chatClient)
	return &app{cfg: cfg, store: store, metrics: m, manager: manager, chat: chatClient}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSession(s types.Session) error {
	if !s.IsAuthenticated {
		fmt.Println("not logged in")
		return nil
	}
	return printJSON(s.User)
}

func main() {
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var a *app

	var rootCmd = &cobra.Command{
		Use:           "neowatch",
		Short:         "neowatch client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "can" {
				return nil
			}
			cfg, err := config.ReadConfiguration(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
			a, err = newApp(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.chat.Disconnect()
				_ = a.store.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")
	rootCmd.PersistentFlags().AddFlagSet(config.GetFlagSet())

	var cmdLogin = &cobra.Command{
		Use:   "login",
		Short: "Log in",
		Long:  `login authenticates with email and password and stores the credential pair.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.manager.Login(ctx, email, password)
			if err != nil {
				return err
			}
			return printSession(s)
		},
	}
	cmdLogin.Flags().StringVar(&email, "email", "", "account email")
	cmdLogin.Flags().StringVar(&password, "password", "", "account password")

	var cmdRegister = &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  `register creates an account and logs in with it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "" && !types.ParseRole(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			s, err := a.manager.Register(ctx, name, email, password, role)
			if err != nil {
				return err
			}
			return printSession(s)
		},
	}
	cmdRegister.Flags().StringVar(&name, "name", "", "display name")
	cmdRegister.Flags().StringVar(&email, "email", "", "account email")
	cmdRegister.Flags().StringVar(&password, "password", "", "account password")
	cmdRegister.Flags().StringVar(&role, "role", "", "requested role (USER, RESEARCHER, ADMIN)")

	var cmdLogout = &cobra.Command{
		Use:   "logout",
		Short: "Log out",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.manager.Logout()
		},
	}

	var cmdWhoami = &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		Long:  `whoami restores the session from the stored credentials and prints the user.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.manager.Hydrate(ctx)
			if s.IsAuthenticated {
				a.manager.RefreshUnreadCount(ctx)
				defer fmt.Printf("unread notifications: %d\n", a.manager.UnreadCount())
			}
			return printSession(s)
		},
	}

	var cmdCan = &cobra.Command{
		Use:   "can [role] [resource] [action]",
		Short: "Check a permission",
		Long:  `can prints whether the role may perform the action on the resource. It exits non-zero if not.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := types.ParseRole(args[0])
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", args[0])
			}
			allowed := permission.HasPermission(r, permission.Resource(args[1]), permission.Action(args[2]))
			fmt.Println(allowed)
			if !allowed {
				os.Exit(1)
			}
			return nil
		},
	}

	var cmdChat = &cobra.Command{
		Use:   "chat [room id]",
		Short: "Join a chat room",
		Long: `chat joins the room and sends every line read from STDIN as a message. "/join ROOM" switches the room,
"/leave" leaves it and "/quit" ends the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.manager.Hydrate(ctx).IsAuthenticated {
				return errors.New("not logged in")
			}
			stopBackground := func() {}
			if a.cfg.SessionConfig.UnreadPoll != "" {
				var err error
				stopBackground, err = a.manager.StartBackground(a.cfg.SessionConfig.UnreadPoll)
				if err != nil {
					return err
				}
			}
			defer stopBackground()
			if metricsAddr != "" {
				go func() {
					err := http.ListenAndServe(metricsAddr, promhttp.Handler())
					globals.AppLogger.Error("metrics listener stopped", "error", err)
				}()
			}

			a.chat.Connect(ctx)
			a.chat.JoinRoom(args[0])
			go printMessages(ctx, a.chat)

			typing := chat.NewTypingNotifier(a.chat, a.cfg.ChatConfig.TypingTimeout)
			defer typing.Stop()
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
					switch {
					case line == "/quit":
						return nil
					case line == "/leave":
						a.chat.LeaveRoom()
					case strings.HasPrefix(line, "/join "):
						a.chat.JoinRoom(strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
					default:
						typing.Keystroke()
						a.chat.SendMessage(line)
						typing.Sent()
					}
				}
			}
		},
	}
	cmdChat.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(cmdLogin, cmdRegister, cmdLogout, cmdWhoami, cmdCan, cmdChat)
	err := rootCmd.Execute()
	if err != nil {
		globals.AppLogger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// printMessages polls the chat state and prints what arrived since the last tick.
func printMessages(ctx context.Context, c *chat.Client) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	room := ""
	printed := 0
	status := chat.Disconnected
	errMsg := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s := c.State()
		if s.Status != status {
			status = s.Status
			fmt.Printf("* %s\n", status)
		}
		if s.Error != "" && s.Error != errMsg {
			fmt.Printf("* error: %s\n", s.Error)
		}
		errMsg = s.Error
		if s.CurrentRoom != room || len(s.Messages) < printed {
			room = s.CurrentRoom
			printed = 0
		}
		for _, m := range s.Messages[printed:] {
			author := m.User.Name
			if author == "" {
				author = m.UserId
			}
			fmt.Printf("[%s] %s %s: %s\n", m.RoomId, m.CreatedAt.Local().Format("15:04"), author, m.Content)
		}
		printed = len(s.Messages)
		if len(s.TypingUsers) > 0 {
			labels := make([]string, len(s.TypingUsers))
			for i, u := range s.TypingUsers {
				labels[i] = u.Label
			}
			fmt.Printf("* typing: %s\n", strings.Join(labels, ", "))
		}
	}
}
