package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/mkerhoas/outlook-relay/authority"
	"github.com/mkerhoas/outlook-relay/internal/config"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/mkerhoas/outlook-relay/server"
	"github.com/mkerhoas/outlook-relay/server/relaystate"
	"github.com/mkerhoas/outlook-relay/timesheet"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	configureLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoints := authority.AzureEndpoints(c.GetTenantID())

	authorityClient := authority.New(authority.Options{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
		Scopes:       c.GetLoginScopes(),
		Endpoints:    endpoints,
	})

	keyResolver, err := relaytoken.NewJWKSResolver(ctx, endpoints.JWKSURL)
	if err != nil {
		return fmt.Errorf("relaytoken.NewJWKSResolver: %w", err)
	}
	verifier := relaytoken.NewVerifier(keyResolver, c.GetClientID(), endpoints.Issuer)

	stateRepo := relaystate.NewInMemoryRepo(relaystate.DefaultTTL, relaystate.DefaultMaxAttempts)
	timesheetClient := timesheet.New(c.GetTimesheetAPIURL(), nil)

	srv, err := server.New(c, authorityClient, verifier, timesheetClient, stateRepo)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func configureLogging(env string) {
	if env == "DEV" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
