package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/telehealth-gateway/internal/application"
	"github.com/example/telehealth-gateway/internal/client"
)

type joinOptions struct {
	server    string
	token     string
	csrfToken string
	portal    bool
	status    string
	duration  time.Duration
}

func newJoinCommand() *cobra.Command {
	opts := joinOptions{}

	cmd := &cobra.Command{
		Use:   "join <appointment-id>",
		Short: "Join an appointment room and keep presence until interrupted",
		Long: `join launches the room for an appointment through a running service, prints the room address and sends presence heartbeats until interrupted or --duration elapses.
Patients (--portal) only join once the provider is present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := flagLogger(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			variant := application.VariantProvider
			if opts.portal {
				variant = application.VariantPortal
			}
			api, err := client.New(opts.server, variant,
				client.WithIdentityToken(opts.token),
				client.WithCSRFToken(opts.csrfToken),
				client.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			var sessionOpts []client.SessionOption
			if opts.status != "" {
				status := opts.status
				sessionOpts = append(sessionOpts, client.WithStatusPrompt(func(context.Context, application.LaunchData) (string, bool) {
					return status, true
				}))
			}
			session := client.NewConferenceSession(api, consoleOpener(cmd.OutOrStdout()), sessionOpts...)

			return join(cmd.Context(), session, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "base URL of the telehealth service")
	cmd.Flags().StringVar(&opts.token, "token", "", "identity token (see mint-identity)")
	cmd.Flags().StringVar(&opts.csrfToken, "csrf-token", "", "forgery token for the end-of-call status update")
	cmd.Flags().BoolVar(&opts.portal, "portal", false, "join as the patient through the portal endpoint")
	cmd.Flags().StringVar(&opts.status, "status", "", "appointment status to record when a provider leaves")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "leave after this long (0 waits for an interrupt)")
	return cmd
}

func join(ctx context.Context, session *client.ConferenceSession, appointmentID string, opts joinOptions) error {
	var err error
	if opts.portal {
		_, err = session.LaunchAsPatient(ctx, appointmentID)
	} else {
		_, err = session.Launch(ctx, appointmentID)
	}
	if err != nil {
		return err
	}

	wait := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	<-wait.Done()

	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return session.End(endCtx, opts.status != "")
}

// consoleWidget stands in for the conferencing widget by printing the room
// address.
type consoleWidget struct {
	out  io.Writer
	room string
}

func consoleOpener(out io.Writer) client.WidgetOpener {
	return func(ctx context.Context, data application.LaunchData) (client.Widget, error) {
		address := roomURL(data)
		fmt.Fprintf(out, "joined %s as %s\n", address, data.Role)
		return &consoleWidget{out: out, room: data.RoomName}, nil
	}
}

func (w *consoleWidget) Dispose() error {
	_, err := fmt.Fprintf(w.out, "left %s\n", w.room)
	return err
}

func roomURL(data application.LaunchData) string {
	u := url.URL{Scheme: "https", Host: data.JitsiDomain, Path: "/" + data.RoomName}
	if data.JWT != nil && *data.JWT != "" {
		u.RawQuery = url.Values{"jwt": {*data.JWT}}.Encode()
	}
	return u.String()
}
