// Command kakeibo-entry signs in through a loopback redirect and appends one
// ledger entry from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

const consentTimeout = 5 * time.Minute

func main() {
	var (
		documentID = flag.String("document", "", "spreadsheet id")
		region     = flag.String("region", "", "sheet name")
		form       core.FormValues
	)
	flag.StringVar(&form.Date, "date", strconv.Itoa(time.Now().Day()), "day of month")
	flag.StringVar(&form.Income, "income", "", "income amount")
	flag.StringVar(&form.Expense, "expense", "", "expense amount")
	flag.StringVar(&form.Account, "account", "", "account (勘定科目)")
	flag.StringVar(&form.Note, "note", "", "note (備考)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *documentID, *region, form); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, documentID, region string, form core.FormValues) error {
	redirectURL := "http://localhost:" + strconv.Itoa(cfg.OAuthRedirectPort) + "/callback"
	provider, err := newProvider(cfg, redirectURL)
	if err != nil {
		return err
	}

	gate := auth.NewGate(auth.NewStaticLoader(provider, cfg.AuthReadyTimeout))
	if err := signIn(ctx, gate, cfg.OAuthRedirectPort); err != nil {
		return err
	}
	defer gate.Release()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The journal and event bus belong to the server; one entry from the terminal skips them.
	backendCfg.SQLiteDBPath, backendCfg.AMQPURL = "", ""
	res, err := backend.NewFactory(nil, nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	token, err := gate.Token()
	if err != nil {
		return err
	}
	workbook, err := res.Workbooks.Workbook(ctx, token)
	if err != nil {
		return err
	}

	result := services.NewOrchestrator(workbook).Submit(ctx, documentID, region, form)
	if !result.OK {
		return errors.New(result.Message)
	}
	fmt.Printf("%s id=%d\n", result.Message, result.Entry.ID)
	return nil
}

func newProvider(cfg *config.Config, redirectURL string) (auth.Provider, error) {
	if cfg.DataBackend != config.BackendGoogle {
		return auth.NewDevProvider(redirectURL), nil
	}
	clientJSON, err := auth.ReadClientJSON(cfg)
	if err != nil {
		return nil, err
	}
	return auth.NewGoogleProvider(clientJSON, redirectURL, cfg.GoogleOAuthScopes)
}

// signIn prints the consent URL and waits for the browser to come back to
// the loopback listener with an authorization code.
func signIn(ctx context.Context, gate *auth.Gate, port int) error {
	state := uuid.NewString()
	consentURL, err := gate.LoginURL(ctx, state)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen for oauth redirect: %w", err)
	}

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var cb callback
		switch {
		case q.Get("error") != "":
			cb.err = fmt.Errorf("consent denied: %s", q.Get("error"))
		case q.Get("state") != state:
			cb.err = errors.New("oauth state mismatch")
		default:
			cb.code = q.Get("code")
		}
		if cb.err != nil {
			http.Error(w, cb.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "ターミナルに戻ってください。このウィンドウは閉じて構いません。")
		}
		select {
		case results <- cb:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Printf("Open this URL to sign in:\n%s\n", consentURL)

	select {
	case cb := <-results:
		if cb.err != nil {
			return cb.err
		}
		return gate.Acquire(ctx, cb.code)
	case <-time.After(consentTimeout):
		return errors.New("sign-in timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}
