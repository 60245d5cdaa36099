// partschat is a terminal client for onionparts conversations.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/vedran77/onionparts/internal/client"
)

// Flag variables.
var (
	serverURL, email, password, logFile string
	logLevel                            int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "partschat",
	Short: "Chat with buyers and sellers on onionparts from the terminal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(jww.Threshold(logLevel), logFile)
	},
	SilenceUsage: true,
}

// init is the initialization function for Cobra which defines flags.
func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s",
		envOr("PARTSCHAT_SERVER", "http://localhost:8080"), "Base URL of the onionparts server.")
	rootCmd.PersistentFlags().StringVarP(&email, "email", "e",
		os.Getenv("PARTSCHAT_EMAIL"), "Account email. Defaults to $PARTSCHAT_EMAIL.")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p",
		os.Getenv("PARTSCHAT_PASSWORD"), "Account password. Defaults to $PARTSCHAT_PASSWORD.")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log", "l", "-",
		"Log output path. By default, logs are printed to stdout. "+
			"To disable logging, set this to empty (\"\").")
	rootCmd.PersistentFlags().IntVarP(&logLevel, "logLevel", "v", 4,
		"Verbosity level of logging. 0 = TRACE, 1 = DEBUG, 2 = INFO, "+
			"3 = WARN, 4 = ERROR, 5 = CRITICAL, 6 = FATAL")

	rootCmd.AddCommand(chatCmd, roomsCmd)
}

// login returns a client holding a fresh access token.
func login(ctx context.Context) (*client.Client, *client.AuthResult, error) {
	if email == "" || password == "" {
		return nil, nil, errors.New("email and password are required (flags or PARTSCHAT_EMAIL / PARTSCHAT_PASSWORD)")
	}
	c := client.New(serverURL)
	jww.INFO.Printf("Logging in to %s as %s", serverURL, email)
	res, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "login failed")
	}
	jww.DEBUG.Printf("Logged in as user %s", res.User.ID)
	return c, res, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// initLog will enable JWW logging to the given log path with the given
// threshold. If log path is empty, then logging is not enabled. Panics if the
// log file cannot be opened or if the threshold is invalid.
func initLog(threshold jww.Threshold, logPath string) {
	if logPath == "" {
		return
	} else if logPath != "-" {
		jww.SetStdoutOutput(io.Discard)

		logOutput, err :=
			os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err)
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold < jww.LevelTrace || threshold > jww.LevelFatal {
		panic("Invalid log threshold: " + strconv.Itoa(int(threshold)))
	}

	// Display microseconds if the threshold is set to TRACE or DEBUG
	if threshold == jww.LevelTrace || threshold == jww.LevelDebug {
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	jww.INFO.Printf("Log level set to: %s", threshold)
}
