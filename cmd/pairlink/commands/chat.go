package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairlink/internal/app"
	"pairlink/internal/crypto"
	"pairlink/internal/domain"
)

func chatContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// printer renders session events. It runs under the session lock, so it only
// writes output and forwards readiness to the chat loop.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	ready chan struct{}
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, ready: make(chan struct{}, 1)}
}

// redirect routes output through the line editor so async events keep the
// prompt intact.
func (p *printer) redirect(out io.Writer) {
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) OnEvent(ev domain.Event) {
	switch ev.Kind {
	case domain.EventChannelCreated:
		p.printf("* channel %s open on relay", ev.ChannelID)
	case domain.EventClientsWaitingToJoin:
		p.printf("* waiting for peer (%d on channel)", ev.Count)
	case domain.EventClientsConnected:
		p.printf("* peer connected")
	case domain.EventClientsDisconnected:
		p.printf("* peer disconnected")
	case domain.EventClientsReady:
		p.printf("* secure channel ready")
		select {
		case p.ready <- struct{}{}:
		default:
		}
	case domain.EventMessage:
		switch ev.Message.Type {
		case domain.TypeChat:
			p.printf("peer: %s", ev.Message.Text)
		case domain.TypePause:
			p.printf("* peer paused")
		case domain.TypeReady:
			p.printf("* peer resumed")
		default:
			p.printf("* peer sent %q", ev.Message.Type)
		}
	case domain.EventError:
		p.printf("! %v", ev.Err)
	}
}

func (p *printer) exhausted(err error) { p.printf("! %v; use /resume to try again", err) }

// chat runs the interactive loop until /quit, EOF or ctx is done.
func chat(ctx context.Context, a *app.App, ui *printer, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		Stdin:           io.NopCloser(in),
		Stdout:          ui.out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer input.Close()
	ui.redirect(input.Stdout())

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			// io.EOF and readline.ErrInterrupt both end the session.
			line, err := input.Readline()
			if err != nil {
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return shutdown(a, cancel, runErr)
		case err := <-runErr:
			return err
		case <-ui.ready:
			persist(a, ui)
		case line, ok := <-lines:
			if !ok {
				return shutdown(a, cancel, runErr)
			}
			if quit := handleLine(ctx, a, ui, line); quit {
				return shutdown(a, cancel, runErr)
			}
		}
	}
}

func handleLine(ctx context.Context, a *app.App, ui *printer, line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit":
		return true
	case "/pause":
		if err := a.Session.Pause(); err != nil {
			ui.printf("! %v", err)
		} else {
			ui.printf("* paused")
		}
	case "/resume":
		if err := a.Session.Resume(ctx); err != nil {
			ui.printf("! %v", err)
		}
	default:
		err := a.Session.SendMessage(domain.Message{Type: domain.TypeChat, Text: line})
		if errors.Is(err, domain.ErrKeysNotExchanged) {
			ui.printf("! not sent: waiting for the key exchange")
		} else if err != nil {
			ui.printf("! %v", err)
		}
	}
	return false
}

func persist(a *app.App, ui *printer) {
	if passphrase == "" {
		logger.Debug("no passphrase; channel not saved")
		return
	}
	rec, err := a.Persist(passphrase)
	if err != nil {
		ui.printf("! %v", err)
		return
	}
	logger.Info("channel saved",
		zap.String("channel", rec.ChannelID.String()),
		zap.String("peer", crypto.Fingerprint(rec.PeerPublicKey.Slice()).String()))
}

func shutdown(a *app.App, cancel context.CancelFunc, runErr <-chan error) error {
	if a.Session.State() != domain.StatePaused {
		if err := a.Session.Pause(); err != nil {
			logger.Debug("pause on exit", zap.Error(err))
		}
	}
	cancel()
	return <-runErr
}
