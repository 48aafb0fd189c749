package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"blog/internal/auth"
	"blog/internal/clock"
	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/mail"
	"blog/internal/models"
	"blog/internal/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

// loadConfig reads .env (if present), the config file and the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// openStore opens the configured database and brings its schema up to date.
func openStore(cfg *config.Config) (*db.DB, error) {
	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(store); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

var rootCmd = &cobra.Command{
	Use:          "blog",
	Short:        "Multi-user blog server",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		logger := newLogger(cfg.LogLevel)

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("database ready", "dialect", store.Dialect().String())

		sessions := auth.NewManager(store, []byte(cfg.SecretKey), auth.Options{
			TTL:    cfg.SessionTTL(),
			Secure: cfg.SecureCookie,
			Clock:  clock.Real{},
		})

		sender := mail.NewSMTPSender(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			To:       cfg.Mail.To,
			Timeout:  cfg.Mail.Timeout(),
		})
		queue := mail.NewQueue(sender, cfg.Mail.Workers, cfg.Mail.QueueSize, logger.With("component", "mail"))
		defer queue.Close()

		srv, err := server.New(store, sessions, queue, logger, server.Config{
			TemplateDir: cfg.TemplateDir,
			StaticDir:   cfg.StaticDir,
		})
		if err != nil {
			return fmt.Errorf("initializing server: %w", err)
		}

		httpSrv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      cfg.Mail.Timeout() + 30*time.Second,
			IdleTimeout:       2 * time.Minute,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.Addr)
			errc <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		version, dirty, err := db.Version(store)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version %d (dirty: %v)\n", version, dirty)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with a fresh secret key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		cfg.SecretKey = hex.EncodeToString(securecookie.GenerateRandomKey(32))
		if err := config.Init(configPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		admin, _ := cmd.Flags().GetBool("admin")
		if name == "" || email == "" {
			return errors.New("--name and --email are required")
		}

		password, err := readPassword()
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		u := &models.User{Name: name, Email: email, PasswordHash: hash, CreatedAt: clock.Real{}.Now()}
		err = store.Tx(ctx, func(q db.Querier) error {
			if err := auth.CreateAccount(ctx, q, u); err != nil {
				return err
			}
			if admin && !u.IsAdmin() {
				u.Role = models.RoleAdmin
				return models.SetUserRole(ctx, q, u.ID, models.RoleAdmin)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Printf("Created user #%d <%s> (%s)\n", u.ID, u.Email, u.Role)
		return nil
	},
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote EMAIL",
	Short: "Grant the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		u, err := models.GetUserByEmail(ctx, store, args[0])
		if err != nil {
			return fmt.Errorf("finding user %s: %w", args[0], err)
		}
		if err := models.SetUserRole(ctx, store, u.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("promoting user: %w", err)
		}
		fmt.Printf("%s is now an admin\n", u.Email)
		return nil
	},
}

const minPasswordLen = 6

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readPipedPassword(os.Stdin)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), checkPassword(string(first))
}

// readPipedPassword takes the whole first line, spaces included.
func readPipedPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	return password, checkPassword(password)
}

func checkPassword(password string) error {
	if len(strings.TrimSpace(password)) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to a TOML config file")

	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("email", "", "Email address")
	userAddCmd.Flags().Bool("admin", false, "Grant the admin role")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userPromoteCmd)
	rootCmd.AddCommand(userCmd)
}
