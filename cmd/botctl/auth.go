package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/auth"
	"github.com/membit-bot/botctl/internal/authflow"
	"github.com/membit-bot/botctl/internal/client"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/output"
	"github.com/membit-bot/botctl/internal/prompt"
	"github.com/membit-bot/botctl/internal/session"
)

// maxCodeAttempts bounds interactive re-prompts for a rejected 6-digit code.
const maxCodeAttempts = 3

const (
	passwordEnv = "BOTCTL_PASSWORD"
	qrFileName  = "botctl-2fa-qr.png"
)

func newSetupCmd() *cobra.Command {
	var (
		username        string
		code            string
		qrFile          string
		backupCodesFile string
		rememberSecret  bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the operator account and enroll 2FA",
		Long: `Run the first-time setup wizard against a fresh backend.

The wizard creates the single operator account, saves the two-factor QR code
and backup codes to files readable only by you, and finishes once a 6-digit
code from your authenticator app is accepted. Steps cannot be skipped.

The password is read from BOTCTL_PASSWORD when set, otherwise prompted.`,
		Example: `  botctl setup
  botctl setup --username admin --remember-secret
  BOTCTL_PASSWORD=... botctl setup --username admin --code 123456 --no-input`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			prompter := prompt.New(out)
			_, c := newBackendClient(ctx)

			decision := session.NewGate(c).Resolve(ctx)
			if decision.Err != nil {
				return clientError(c.BaseURL(), decision.Err)
			}

			if decision.Route != session.RouteSetup {
				out.Info("Setup is already complete")
				out.Muted("Run 'botctl login' to sign in")

				return nil
			}

			wizard := authflow.NewWizard(c)

			if err := submitSetupCredentials(ctx, out, prompter, wizard, username); err != nil {
				return clientError(c.BaseURL(), err)
			}

			enrollment := wizard.Enrollment()

			if err := saveEnrollment(out, wizard.Username(), enrollment, qrFile, backupCodesFile); err != nil {
				return err
			}

			if rememberSecret {
				source, err := auth.Store(auth.KindTOTP, c.BaseURL(), enrollment.TOTPSecret)
				if err != nil {
					return clierrors.ConfigFailed("store 2FA secret", err)
				}

				out.Success("2FA secret saved to %s", source)
			}

			if prompter.CanPrompt() {
				saved, err := prompter.Confirm("Have you saved your backup codes?", true)
				if err != nil {
					return fmt.Errorf("read backup codes confirmation: %w", err)
				}

				if !saved {
					out.Warning("Store the backup codes before continuing; they are shown only once")
				}
			}

			if err := wizard.Acknowledge(); err != nil {
				return err
			}

			if err := verifySetup(ctx, out, prompter, wizard, code); err != nil {
				return clientError(c.BaseURL(), err)
			}

			out.Success("Setup complete for %s", wizard.Username())
			out.Muted("Run 'botctl login' to sign in")

			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Operator username (prompted when omitted)")
	cmd.Flags().StringVar(&code, "code", "", "6-digit verification code for non-interactive setup")
	cmd.Flags().StringVar(&qrFile, "qr-file", qrFileName, "Where to save the 2FA QR code image")
	cmd.Flags().StringVar(&backupCodesFile, "backup-codes-file", authflow.BackupCodesFilename, "Where to save the backup codes")
	cmd.Flags().BoolVar(&rememberSecret, "remember-secret", false, "Store the 2FA secret in the OS keyring for 'login --totp-from-keyring'")

	return cmd
}

func submitSetupCredentials(ctx context.Context, out *output.Writer, prompter *prompt.Prompter, wizard *authflow.Wizard, username string) error {
	password := os.Getenv(passwordEnv)

	if !prompter.CanPrompt() {
		if username == "" || password == "" {
			return clierrors.CannotPrompt("Pass --username and set " + passwordEnv)
		}

		return wizard.SubmitCredentials(ctx, username, password, password)
	}

	for {
		var err error

		if username == "" {
			if username, err = prompter.Input("Username", ""); err != nil {
				return fmt.Errorf("read username prompt: %w", err)
			}
		}

		confirm := password

		if password == "" {
			if password, err = prompter.Password("Password"); err != nil {
				return fmt.Errorf("read password prompt: %w", err)
			}

			if confirm, err = prompter.Password("Confirm password"); err != nil {
				return fmt.Errorf("read password prompt: %w", err)
			}
		}

		err = wizard.SubmitCredentials(ctx, username, password, confirm)

		var validation *client.ValidationError
		if !errors.As(err, &validation) {
			return err
		}

		out.Failure("%s", validation.Message)

		if validation.Field == "username" {
			username = ""
		}

		password = ""
	}
}

func saveEnrollment(out *output.Writer, username string, enrollment *client.Enrollment, qrFile, backupCodesFile string) error {
	out.Println()
	out.Success("Account %s created", username)

	if qrFile != "" {
		png, err := enrollment.QRCodePNG()
		if err != nil {
			out.Warning("Could not decode QR code: %v", err)
		} else if err := writePrivateFile(qrFile, png); err != nil {
			return clierrors.ConfigFailed("save QR code", err)
		} else {
			out.Info("Scan the QR code saved to %s with your authenticator app", qrFile)
		}
	}

	out.Print("Manual entry secret: %s\n", enrollment.TOTPSecret)
	out.Println()
	out.Println("Backup codes (each works once):")

	for _, code := range enrollment.BackupCodes {
		out.Print("  %s\n", code)
	}

	if backupCodesFile != "" {
		text := authflow.BackupCodesText(username, enrollment.BackupCodes, time.Now())
		if err := writePrivateFile(backupCodesFile, []byte(text)); err != nil {
			return clierrors.ConfigFailed("save backup codes", err)
		}

		out.Info("Backup codes saved to %s", backupCodesFile)
	}

	out.Println()

	return nil
}

func verifySetup(ctx context.Context, out *output.Writer, prompter *prompt.Prompter, wizard *authflow.Wizard, code string) error {
	if code != "" || !prompter.CanPrompt() {
		if code == "" {
			return clierrors.CannotPrompt("Pass --code with the 6-digit code from your authenticator app")
		}

		return wizard.Verify(ctx, code)
	}

	for attempt := 1; ; attempt++ {
		input, err := prompter.Input("6-digit code", "")
		if err != nil {
			return fmt.Errorf("read code prompt: %w", err)
		}

		err = wizard.Verify(ctx, input)
		if err == nil {
			return nil
		}

		var (
			validation *client.ValidationError
			rejected   *client.RejectedError
		)

		if !errors.As(err, &validation) && !errors.As(err, &rejected) {
			return err
		}

		if attempt >= maxCodeAttempts {
			return err
		}

		out.Failure("%s", client.UserMessage(err))
	}
}

// LoginStatus represents a login result for JSON output.
type LoginStatus struct {
	Username string `json:"username"`
	Server   string `json:"server"`
	Source   string `json:"source"`
}

func newLoginCmd() *cobra.Command {
	var (
		username        string
		code            string
		totpFromKeyring bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with password and 6-digit code",
		Long: `Sign in to the bot backend with your username, password and the current
6-digit code from your authenticator app.

The session cookie is stored in your system keyring (or a 0600 file when no
keyring is available) and reused by every other command. The password is read
from BOTCTL_PASSWORD when set, otherwise prompted.`,
		Example: `  botctl login
  botctl login --username admin --totp-from-keyring
  BOTCTL_PASSWORD=... botctl login --username admin --code 123456 --no-input`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			prompter := prompt.New(out)
			_, c := newBackendClient(ctx)
			server := c.BaseURL()

			decision := session.NewGate(c).Resolve(ctx)

			switch {
			case decision.Err != nil:
				return clientError(server, decision.Err)
			case decision.Route == session.RouteSetup:
				return clierrors.SetupRequired()
			case decision.Route == session.RouteDashboard:
				out.Info("Already logged in as %s", decision.Session.Username)
				return nil
			}

			form := authflow.NewLoginForm(c)

			var source auth.Source

			form.OnSuccess = func() error {
				var err error

				source, err = persistSession(c)

				return err
			}

			if err := fillLoginForm(out, prompter, form, username); err != nil {
				return err
			}

			codeFn := func() (string, error) {
				switch {
				case code != "":
					return code, nil
				case totpFromKeyring:
					return keyringCode(server)
				case !prompter.CanPrompt():
					return "", clierrors.CannotPrompt("Pass --code or --totp-from-keyring")
				default:
					return prompter.Input("6-digit code", "")
				}
			}

			if err := submitLogin(ctx, out, prompter, form, codeFn, code == "" && !totpFromKeyring); err != nil {
				return clientError(server, err)
			}

			if out.JSON {
				return out.PrintJSON(LoginStatus{Username: form.Username, Server: server, Source: string(source)})
			}

			out.Success("Logged in as %s", form.Username)
			out.Muted("Session stored in %s", source)

			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Operator username (prompted when omitted)")
	cmd.Flags().StringVar(&code, "code", "", "6-digit code from your authenticator app")
	cmd.Flags().BoolVar(&totpFromKeyring, "totp-from-keyring", false, "Compute the code from the secret saved by 'setup --remember-secret'")

	return cmd
}

func fillLoginForm(out *output.Writer, prompter *prompt.Prompter, form *authflow.LoginForm, username string) error {
	form.Username = username
	form.Password = os.Getenv(passwordEnv)

	if form.Username != "" && form.Password != "" {
		return nil
	}

	if !prompter.CanPrompt() {
		return clierrors.CannotPrompt("Pass --username and set " + passwordEnv)
	}

	if os.Getenv(passwordEnv) != "" {
		out.Muted("Using password from %s", passwordEnv)
	}

	var err error

	if form.Username == "" {
		if form.Username, err = prompter.Input("Username", ""); err != nil {
			return fmt.Errorf("read username prompt: %w", err)
		}
	}

	if form.Password == "" {
		if form.Password, err = prompter.Password("Password"); err != nil {
			return fmt.Errorf("read password prompt: %w", err)
		}
	}

	return nil
}

// submitLogin sends the form. When the code came from a prompt, a rejected or
// malformed code is asked for again; the other fields are kept.
func submitLogin(ctx context.Context, out *output.Writer, prompter *prompt.Prompter, form *authflow.LoginForm, codeFn func() (string, error), retry bool) error {
	for attempt := 1; ; attempt++ {
		code, err := codeFn()
		if err != nil {
			return err
		}

		form.Code.Set(code)

		spin := out.Spinner("Signing in")
		spin.Start()

		err = form.Submit(ctx)
		if err == nil {
			spin.Stop()
			return nil
		}

		spin.StopWithFailure(client.UserMessage(err))

		var (
			validation *client.ValidationError
			rejected   *client.RejectedError
		)

		codeProblem := errors.As(err, &rejected) || (errors.As(err, &validation) && validation.Field == "code")
		if !retry || !codeProblem || !prompter.CanPrompt() || attempt >= maxCodeAttempts {
			return err
		}
	}
}

func keyringCode(server string) (string, error) {
	_, secret := auth.Get(auth.KindTOTP, server)
	if secret == "" {
		return "", clierrors.New(clierrors.ExitConfig, "No 2FA secret stored for "+server).
			WithHint("Run 'botctl setup --remember-secret' or pass --code")
	}

	code, err := authflow.GenerateCode(secret, time.Now())
	if err != nil {
		return "", clierrors.ConfigFailed("generate 2FA code", err)
	}

	return code, nil
}

func newLogoutCmd() *cobra.Command {
	var forgetSecret bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the stored cookie",
		Long: `End the session on the server and remove the stored session cookie. The
local cookie is removed even when the server cannot be reached.`,
		Example: `  botctl logout
  botctl logout --forget-secret`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			_, c := newBackendClient(ctx)
			server := c.BaseURL()

			if c.SessionCookie() != "" {
				if err := c.Logout(ctx); err != nil {
					out.Warning("Server logout failed: %s", client.UserMessage(err))
				}
			}

			if err := auth.DeleteSessionCookie(server); err != nil {
				if errors.Is(err, auth.ErrNotStored) {
					out.Muted("No stored session found")
				} else {
					return clierrors.ConfigFailed("clear session", err)
				}
			} else {
				out.Success("Logged out")
			}

			if forgetSecret {
				if err := auth.Delete(auth.KindTOTP, server); err == nil {
					out.Success("Forgot stored 2FA secret")
				}
			}

			if strings.TrimSpace(os.Getenv("BOTCTL_SESSION_COOKIE")) != "" {
				out.Println()
				out.Warning("BOTCTL_SESSION_COOKIE environment variable is still set")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&forgetSecret, "forget-secret", false, "Also remove a 2FA secret saved with --remember-secret")

	return cmd
}

// WhoamiStatus represents the gate result for JSON output.
type WhoamiStatus struct {
	Server   string `json:"server"`
	Route    string `json:"route"`
	Username string `json:"username,omitempty"`
	Source   string `json:"source,omitempty"`
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state and username",
		Long: `Ask the backend where this session belongs: setup, login or dashboard.
Only a dashboard route means the stored session is valid.`,
		Example: `  botctl whoami
  botctl whoami --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			_, c := newBackendClient(ctx)
			server := c.BaseURL()
			source, _ := auth.SessionCookie(server)

			decision := session.NewGate(c).Resolve(ctx)
			if decision.Err != nil {
				var transport *client.TransportError
				if errors.As(decision.Err, &transport) {
					return clierrors.ServerUnreachable(server, decision.Err)
				}
			}

			if out.JSON {
				return out.PrintJSON(WhoamiStatus{
					Server:   server,
					Route:    decision.Route.String(),
					Username: decision.Session.Username,
					Source:   string(source),
				})
			}

			switch decision.Route {
			case session.RouteDashboard:
				out.Success("Logged in as %s", decision.Session.Username)
				out.Print("Server:  %s\n", server)
				out.Print("Session: %s\n", source)

				return nil
			case session.RouteSetup:
				return clierrors.SetupRequired()
			default:
				return clierrors.NotAuthenticated()
			}
		},
	}
}
