package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/types"
)

var registerCmd = &cobra.Command{
	Use:     "register",
	GroupID: "session",
	Short:   "Create an account on the task service",
	Long: `Create an account. Missing fields are prompted for when stdin is a
terminal. Registering does not sign you in; run 'tsk login' afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		reg := types.Registration{}
		reg.Name, _ = cmd.Flags().GetString("name")
		reg.Email, _ = cmd.Flags().GetString("email")
		reg.Password, _ = cmd.Flags().GetString("password")

		if reg.Name == "" || reg.Email == "" || reg.Password == "" {
			if err := promptRegistration(&reg); err != nil {
				fatalf("Error: %v\n", err)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()

		if err := a.Session.Register(ctx, reg); err != nil {
			a.Close()
			os.Exit(1)
		}
	},
}

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "session",
	Short:   "Sign in and remember the session",
	Long: `Sign in with email and password. The session cookie is stored in the
state directory, so later commands stay signed in until 'tsk logout'.`,
	Run: func(cmd *cobra.Command, args []string) {
		creds := types.Credentials{}
		creds.Email, _ = cmd.Flags().GetString("email")
		creds.Password, _ = cmd.Flags().GetString("password")

		if creds.Email == "" || creds.Password == "" {
			if err := promptCredentials(&creds); err != nil {
				fatalf("Error: %v\n", err)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()

		if err := a.Session.Login(ctx, creds); err != nil {
			a.Close()
			os.Exit(1)
		}
		id := a.Session.Resolve(ctx)
		if id.Status == session.StatusAuthenticated {
			fmt.Printf("Signed in as %s\n", out.RenderBold(id.User.DisplayName()))
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "session",
	Short:   "End the session and forget stored credentials",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()

		logoutErr := a.Session.Logout(ctx)
		// Forget the local cookie even when the server could not be told.
		if err := a.Credentials().Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to clear stored credentials: %v\n", err)
		}
		if logoutErr != nil {
			a.Close()
			os.Exit(1)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "session",
	Short:   "Show who is signed in",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, false)
		defer a.Close()

		id := a.Session.Resolve(ctx)
		if id.Status != session.StatusAuthenticated {
			fmt.Println("Not logged in")
			return
		}
		fmt.Printf("%s, %s!\n", types.Greeting(a.Clock().Now()), out.RenderBold(id.User.DisplayName()))
		fmt.Printf("  %s %s\n", out.RenderMuted("email"), id.User.Email)
		fmt.Printf("  %s %s\n", out.RenderMuted("id   "), id.User.ID)
	},
}

func init() {
	registerCmd.Flags().String("name", "", "Display name")
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("password", "", "Password (prompted when omitted)")

	loginCmd.Flags().String("email", "", "Email address")
	loginCmd.Flags().String("password", "", "Password (prompted when omitted)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
}

var errNotInteractive = errors.New("missing flags and stdin is not a terminal")

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func promptCredentials(creds *types.Credentials) error {
	if !interactive() {
		return errNotInteractive
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email").Value(&creds.Email).Validate(required("email")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&creds.Password).Validate(required("password")),
	)).Run()
}

func promptRegistration(reg *types.Registration) error {
	if !interactive() {
		return errNotInteractive
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Name").Value(&reg.Name).Validate(required("name")),
		huh.NewInput().Title("Email").Value(&reg.Email).Validate(required("email")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&reg.Password).Validate(func(s string) error {
			if len(s) < 6 {
				return errors.New("password must be at least 6 characters")
			}
			return nil
		}),
	)).Run()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
