package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stadtwache/opsclient/client"
	"github.com/stadtwache/opsclient/internal/fakeapi"
	"github.com/stadtwache/opsclient/session"
)

var (
	loginPassword string
	watchInterval time.Duration
	fakeAddr      string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and store the session on this device",
	Long: `Sign in with an e-mail address and password. The password is read from
--password or, when omitted, from the OPSCLIENT_PASSWORD environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("OPSCLIENT_PASSWORD")
		}

		c, cleanup, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if c.Session().Status == session.Authenticated {
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
		}

		if err := c.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Angemeldet als"), c.Session().User.DisplayName())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := c.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Abgemeldet"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		snap := c.Session()
		if snap.Status != session.Authenticated {
			return client.ErrNotAuthenticated
		}
		fmt.Println(renderProfile(snap.User))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll the dashboard figures once",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := c.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(snap))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the dashboard figures as they are polled",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if c.Session().Status != session.Authenticated {
			return client.ErrNotAuthenticated
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		var last uint64
		for {
			if snap := c.Status(); snap.Seq != last {
				last = snap.Seq
				fmt.Println(renderStatus(snap))
			}
			if c.Session().Status != session.Authenticated {
				return errors.New("session ended")
			}

			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

var fakeServerCmd = &cobra.Command{
	Use:    "fake-server",
	Short:  "Run an in-memory control center API for local testing",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.Must(zap.NewDevelopment())
		defer logger.Sync()

		srv := &http.Server{Addr: fakeAddr, Handler: fakeapi.New()}
		go func() {
			<-cmd.Context().Done()
			srv.Close()
		}()

		logger.Info("fake control center listening",
			zap.String("addr", fakeAddr),
			zap.String("user", fakeapi.AdminEmail),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password")
	watchCmd.Flags().DurationVar(&watchInterval, "refresh", time.Second, "How often to check for a new snapshot")
	fakeServerCmd.Flags().StringVar(&fakeAddr, "addr", "127.0.0.1:8080", "Listen address")
}
